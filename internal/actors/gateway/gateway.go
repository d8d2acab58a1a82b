// Package gateway serves the JSON API of the stores on a grpc-gateway mux.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rbroggi/souqly/internal/core/model"
	log "github.com/sirupsen/logrus"
)

// GatewayArgs are the mandatory args to instantiate the Gateway.
type GatewayArgs struct {
	Session     sessionUsecase
	Identity    identityUsecase
	Registry    registryUsecase
	Cart        cartUsecase
	Favorites   favoritesUsecase
	Departments departmentsUsecase

	// Health reports whether the persisted key space is reachable.
	Health healthProbe
}

// GatewayOptArgs are the optional arguments for building a Gateway.
type GatewayOptArgs = func(*Gateway)

// WithMetricsHandler exposes h on GET /metrics.
func WithMetricsHandler(h http.Handler) GatewayOptArgs {
	return func(g *Gateway) {
		g.metrics = h
	}
}

// NewGateway creates a new Gateway.
func NewGateway(args GatewayArgs, optArgs ...GatewayOptArgs) *Gateway {
	g := &Gateway{
		session:     args.Session,
		identity:    args.Identity,
		registry:    args.Registry,
		cart:        args.Cart,
		favorites:   args.Favorites,
		departments: args.Departments,
		health:      args.Health,
	}
	for _, opt := range optArgs {
		opt(g)
	}
	return g
}

// Gateway implements the HTTP routes.
type Gateway struct {
	session     sessionUsecase
	identity    identityUsecase
	registry    registryUsecase
	cart        cartUsecase
	favorites   favoritesUsecase
	departments departmentsUsecase
	health      healthProbe
	metrics     http.Handler
}

// Register adds every route to mux.
func (g *Gateway) Register(mux *runtime.ServeMux) error {
	routes := []route{
		{http.MethodGet, "/healthz", g.healthz},

		{http.MethodPost, "/v1/accounts", g.register},
		{http.MethodGet, "/v1/accounts", g.guard(g.listAccounts)},
		{http.MethodGet, "/v1/session", g.currentSession},
		{http.MethodPost, "/v1/session", g.login},
		{http.MethodDelete, "/v1/session", g.logout},

		{http.MethodGet, "/v1/profile", g.guard(g.profile)},
		{http.MethodPatch, "/v1/profile", g.guard(g.updateProfile)},
		{http.MethodDelete, "/v1/profile", g.guard(g.deleteAccount)},

		{http.MethodGet, "/v1/cart", g.listCart},
		{http.MethodPost, "/v1/cart/items", g.addToCart},
		{http.MethodPut, "/v1/cart/items/{id}", g.updateQuantity},
		{http.MethodDelete, "/v1/cart/items/{id}", g.removeFromCart},
		{http.MethodDelete, "/v1/cart", g.clearCart},

		{http.MethodGet, "/v1/favorites", g.listFavorites},
		{http.MethodPost, "/v1/favorites", g.addFavorite},
		{http.MethodDelete, "/v1/favorites/{id}", g.removeFavorite},
		{http.MethodDelete, "/v1/favorites", g.clearFavorites},

		{http.MethodGet, "/v1/favorite-departments", g.listDepartments},
		{http.MethodPost, "/v1/favorite-departments", g.addDepartment},
		{http.MethodDelete, "/v1/favorite-departments/{name}", g.removeDepartment},
		{http.MethodDelete, "/v1/favorite-departments", g.clearDepartments},
	}
	if g.metrics != nil {
		routes = append(routes, route{http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			g.metrics.ServeHTTP(w, r)
		}})
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return err
		}
	}
	return nil
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

// guard only lets authenticated shoppers through.
func (g *Gateway) guard(next runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		if !g.identity.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, params)
	}
}

func (g *Gateway) healthz(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := g.health.Probe(r.Context()); err != nil {
		log.WithError(err).Warn("health probe failed")
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "Unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "Ok"})
}

func (g *Gateway) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var args model.RegisterArgs
	if !decode(w, r, &args) {
		return
	}
	account, err := g.session.Register(r.Context(), args)
	if err != nil {
		writeUsecaseError(w, "Register", err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (g *Gateway) listAccounts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accounts, err := g.registry.All(r.Context())
	if err != nil {
		writeUsecaseError(w, "All", err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (g *Gateway) currentSession(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	account, ok := g.identity.CurrentAccount()
	resp := sessionResponse{Authenticated: ok}
	if ok {
		resp.Account = &account
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := g.session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeUsecaseError(w, "Login", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, Account: account})
}

func (g *Gateway) logout(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := g.session.Logout(r.Context()); err != nil {
		writeUsecaseError(w, "Logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) profile(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	account, ok := g.identity.CurrentAccount()
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (g *Gateway) updateProfile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var args model.UpdateProfileArgs
	if !decode(w, r, &args) {
		return
	}
	account, err := g.registry.UpdateProfile(r.Context(), g.identity.Current().UserID, args)
	if err != nil {
		writeUsecaseError(w, "UpdateProfile", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (g *Gateway) deleteAccount(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := g.session.DeleteAccount(r.Context()); err != nil {
		writeUsecaseError(w, "DeleteAccount", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) listCart(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, cartResponse{
		Items:      g.cart.Items(),
		TotalItems: g.cart.TotalItems(),
		TotalPrice: g.cart.TotalPrice(),
	})
}

func (g *Gateway) addToCart(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var product model.Product
	if !decode(w, r, &product) {
		return
	}
	item, err := g.cart.Add(r.Context(), product)
	if err != nil {
		writeUsecaseError(w, "Cart.Add", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (g *Gateway) updateQuantity(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := intParam(w, params, "id")
	if !ok {
		return
	}
	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	if err := g.cart.UpdateQuantity(r.Context(), id, req.Quantity); err != nil {
		writeUsecaseError(w, "Cart.UpdateQuantity", err)
		return
	}
	g.listCart(w, r, params)
}

func (g *Gateway) removeFromCart(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := intParam(w, params, "id")
	if !ok {
		return
	}
	if err := g.cart.Remove(r.Context(), id); err != nil {
		writeUsecaseError(w, "Cart.Remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) clearCart(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := g.cart.Clear(r.Context()); err != nil {
		writeUsecaseError(w, "Cart.Clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) listFavorites(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, g.favorites.Items())
}

func (g *Gateway) addFavorite(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var item model.FavoriteItem
	if !decode(w, r, &item) {
		return
	}
	added, err := g.favorites.Add(r.Context(), item)
	if err != nil {
		writeUsecaseError(w, "Favorites.Add", err)
		return
	}
	writeJSON(w, http.StatusOK, addedResponse{Added: added})
}

func (g *Gateway) removeFavorite(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := intParam(w, params, "id")
	if !ok {
		return
	}
	if err := g.favorites.Remove(r.Context(), id); err != nil {
		writeUsecaseError(w, "Favorites.Remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) clearFavorites(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := g.favorites.Clear(r.Context()); err != nil {
		writeUsecaseError(w, "Favorites.Clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) listDepartments(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, g.departments.Items())
}

func (g *Gateway) addDepartment(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var department model.FavoriteDepartment
	if !decode(w, r, &department) {
		return
	}
	if department.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	added, err := g.departments.Add(r.Context(), department)
	if err != nil {
		writeUsecaseError(w, "FavoriteDepartments.Add", err)
		return
	}
	writeJSON(w, http.StatusOK, addedResponse{Added: added})
}

func (g *Gateway) removeDepartment(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := g.departments.Remove(r.Context(), params["name"]); err != nil {
		writeUsecaseError(w, "FavoriteDepartments.Remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) clearDepartments(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := g.departments.Clear(r.Context()); err != nil {
		writeUsecaseError(w, "FavoriteDepartments.Clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, params map[string]string, name string) (int, bool) {
	v, err := strconv.Atoi(params[name])
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// writeUsecaseError maps the model errors onto HTTP statuses. Anything else is internal.
func writeUsecaseError(w http.ResponseWriter, usecase string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrWeakPassword),
		errors.Is(err, model.ErrPasswordMismatch),
		errors.Is(err, model.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		log.WithError(err).Errorf("error invoking usecase %s", usecase)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("error writing response")
	}
}

type sessionUsecase interface {
	Login(ctx context.Context, email, password string) (*model.Account, error)
	Register(ctx context.Context, args model.RegisterArgs) (*model.Account, error)
	Logout(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

type identityUsecase interface {
	Current() model.Identity
	CurrentAccount() (model.Account, bool)
	IsAuthenticated() bool
}

type registryUsecase interface {
	UpdateProfile(ctx context.Context, id string, args model.UpdateProfileArgs) (*model.Account, error)
	All(ctx context.Context) ([]model.Account, error)
}

type cartUsecase interface {
	Items() []model.CartItem
	Add(ctx context.Context, product model.Product) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, id int, quantity int) error
	Remove(ctx context.Context, id int) error
	Clear(ctx context.Context) error
	TotalItems() int
	TotalPrice() float64
}

type favoritesUsecase interface {
	Items() []model.FavoriteItem
	Add(ctx context.Context, item model.FavoriteItem) (bool, error)
	Remove(ctx context.Context, id int) error
	Clear(ctx context.Context) error
}

type departmentsUsecase interface {
	Items() []model.FavoriteDepartment
	Add(ctx context.Context, department model.FavoriteDepartment) (bool, error)
	Remove(ctx context.Context, name string) error
	Clear(ctx context.Context) error
}

type healthProbe interface {
	Probe(ctx context.Context) error
}
