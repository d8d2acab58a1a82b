package model

// RegisterArgs contain the arguments of the Register use-case.
type RegisterArgs struct {
	// FirstName is the account holder first name.
	FirstName string `json:"firstName"`

	// LastName is the account holder last name.
	LastName string `json:"lastName"`

	// Email must be a valid address and not registered yet.
	Email string `json:"email" validate:"required,email"`

	// Phone is optional; when present it follows ^[+]?[1-9]\d{0,15}$.
	Phone string `json:"phone" validate:"omitempty,phone"`

	// Country is the account holder country
	Country string `json:"country"`

	// City is the account holder city
	City string `json:"city"`

	// Gender is the account holder gender
	Gender string `json:"gender"`

	// DateOfBirth is optional; when present it is 2006-01-02 and at least 13 years ago.
	DateOfBirth string `json:"dob" validate:"omitempty,dob"`

	// Password is the plain-text password. It is never persisted.
	Password string `json:"password" validate:"required,strongpassword"`

	// ConfirmPassword must equal Password when present.
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
}

// UpdateProfileArgs contain the fields of a partial profile update. Nil fields are left untouched.
type UpdateProfileArgs struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,phone"`
	Country     *string `json:"country"`
	City        *string `json:"city"`
	Gender      *string `json:"gender"`
	DateOfBirth *string `json:"dob" validate:"omitempty,dob"`

	// Password replaces the current password when set.
	Password *string `json:"password" validate:"omitempty,strongpassword"`
}
