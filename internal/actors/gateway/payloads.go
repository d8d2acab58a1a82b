package gateway

import "github.com/rbroggi/souqly/internal/core/model"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type sessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	Account       *model.Account `json:"account,omitempty"`
}

type cartResponse struct {
	Items      []model.CartItem `json:"items"`
	TotalItems int              `json:"totalItems"`
	TotalPrice float64          `json:"totalPrice"`
}

type addedResponse struct {
	Added bool `json:"added"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
