package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rbroggi/souqly/internal/core/model"
)

const (
	minPasswordLength = 8
	passwordSpecials  = "@$!%*?&"
	minimumAge        = 13
	dateOfBirthLayout = "2006-01-02"
)

var phonePattern = regexp.MustCompile(`^[+]?[1-9]\d{0,15}$`)

func newValidator(nowFunc func() time.Time) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// registration can only fail on programming errors: tags are constant.
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "strongpassword", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	mustRegister(v, "dob", func(fl validator.FieldLevel) bool {
		dob, err := time.Parse(dateOfBirthLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return age(dob, nowFunc()) >= minimumAge
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering validation %q: %v", tag, err))
	}
}

// isStrongPassword requires 8+ characters with an upper-case letter, a digit and a special char.
func isStrongPassword(pw string) bool {
	if utf8.RuneCountInString(pw) < minPasswordLength {
		return false
	}
	var upper, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case unicode.IsDigit(r) && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return upper && digit && special
}

func age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// translateValidationError maps validator failures onto the model errors.
func translateValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "strongpassword":
			return model.ErrWeakPassword
		case "eqfield":
			return model.ErrPasswordMismatch
		}
	}
	fe := validationErrors[0]
	return fmt.Errorf("%w: %s failed on the %q rule", model.ErrInvalidArgument, fe.Field(), fe.Tag())
}
