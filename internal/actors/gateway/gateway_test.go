package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	grpcactor "github.com/rbroggi/souqly/internal/actors/grpc"
	"github.com/rbroggi/souqly/internal/actors/memory"
	"github.com/rbroggi/souqly/internal/core/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
	store  *memory.Handle
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewSpace().Handle()
	opts := []usecase.OptArgs{usecase.WithHashParams(&argon2id.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16,
	})}
	identity := usecase.NewIdentityStore(ctx, usecase.IdentityStoreArgs{Store: store}, opts...)
	registry := usecase.NewAccountRegistry(usecase.AccountRegistryArgs{Store: store, Identity: identity}, opts...)
	collectionArgs := usecase.CollectionArgs{Store: store, Identity: identity}
	cart := usecase.NewCart(collectionArgs, opts...)
	favorites := usecase.NewFavorites(collectionArgs, opts...)
	departments := usecase.NewFavoriteDepartments(collectionArgs, opts...)
	session := usecase.NewSession(usecase.SessionArgs{
		Registry:    registry,
		Identity:    identity,
		Transferers: []usecase.GuestTransferer{cart, favorites, departments},
	}, opts...)

	g := NewGateway(GatewayArgs{
		Session:     session,
		Identity:    identity,
		Registry:    registry,
		Cart:        cart,
		Favorites:   favorites,
		Departments: departments,
		Health:      grpcactor.NewHealthService(grpcactor.HealthServiceArgs{Store: store}),
	}, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("souqly_store_writes_total 1\n"))
	})))
	mux := runtime.NewServeMux()
	require.NoError(t, g.Register(mux))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{t: t, server: server, store: store}
}

func (s *testServer) do(method, path, body string) (int, map[string]any) {
	s.t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(s.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var decoded any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	if m, ok := decoded.(map[string]any); ok {
		return resp.StatusCode, m
	}
	return resp.StatusCode, map[string]any{"list": decoded}
}

const registration = `{"firstName":"Joe","email":"a@x.com","password":"Aa1!aaaa","confirmPassword":"Aa1!aaaa"}`

func TestGateway_Accounts(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/v1/accounts", registration)
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, body["id"])
	assert.NotContains(t, body, "passwordHash")

	code, _ = s.do(http.MethodPost, "/v1/accounts", registration)
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(http.MethodGet, "/v1/session", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"], "registration signs in")

	code, _ = s.do(http.MethodDelete, "/v1/session", "")
	require.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(http.MethodPost, "/v1/session", `{"email":"a@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(http.MethodPost, "/v1/session", `{"email":"a@x.com","password":"Aa1!aaaa"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])
}

func TestGateway_RegisterValidation(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{name: "malformed body", body: `{`, expectedCode: http.StatusBadRequest},
		{name: "weak password", body: `{"email":"a@x.com","password":"weak"}`, expectedCode: http.StatusBadRequest},
		{name: "invalid email", body: `{"email":"nope","password":"Aa1!aaaa"}`, expectedCode: http.StatusBadRequest},
		{name: "password mismatch", body: `{"email":"a@x.com","password":"Aa1!aaaa","confirmPassword":"Aa1!aaab"}`, expectedCode: http.StatusBadRequest},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := newTestServer(t)
			code, _ := s.do(http.MethodPost, "/v1/accounts", test.body)
			assert.Equal(t, test.expectedCode, code)
		})
	}
}

func TestGateway_ProfileIsGuarded(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		code, _ := s.do(method, "/v1/profile", `{}`)
		assert.Equal(t, http.StatusUnauthorized, code, method)
	}
	code, _ := s.do(http.MethodGet, "/v1/accounts", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/v1/accounts", registration)
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(http.MethodPatch, "/v1/profile", `{"city":"Cairo"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Cairo", body["city"])

	code, body = s.do(http.MethodGet, "/v1/profile", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Cairo", body["city"])

	code, _ = s.do(http.MethodDelete, "/v1/profile", "")
	require.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodGet, "/v1/profile", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestGateway_Cart(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/v1/cart/items", `{"id":1,"title":"phone","price":100}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["quantity"])
	code, body = s.do(http.MethodPost, "/v1/cart/items", `{"id":1,"title":"phone","price":100}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["quantity"])

	code, body = s.do(http.MethodPut, "/v1/cart/items/1", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(5), body["totalItems"])
	assert.Equal(t, float64(500), body["totalPrice"])

	code, _ = s.do(http.MethodPut, "/v1/cart/items/abc", `{"quantity":5}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodDelete, "/v1/cart/items/1", "")
	require.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodDelete, "/v1/cart/items/1", "")
	require.Equal(t, http.StatusNoContent, code)

	code, body = s.do(http.MethodGet, "/v1/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"])
}

func TestGateway_Favorites(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/v1/favorites", `{"id":7,"title":"laptop"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["added"])
	_, body = s.do(http.MethodPost, "/v1/favorites", `{"id":7,"title":"laptop"}`)
	assert.Equal(t, false, body["added"])

	code, body = s.do(http.MethodGet, "/v1/favorites", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["list"], 1)

	code, _ = s.do(http.MethodDelete, "/v1/favorites", "")
	require.Equal(t, http.StatusNoContent, code)
	_, body = s.do(http.MethodGet, "/v1/favorites", "")
	assert.Empty(t, body["list"])
}

func TestGateway_FavoriteDepartments(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/v1/favorite-departments", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(http.MethodPost, "/v1/favorite-departments", `{"name":"laptops"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["added"])

	code, _ = s.do(http.MethodDelete, "/v1/favorite-departments/laptops", "")
	require.Equal(t, http.StatusNoContent, code)
	_, body = s.do(http.MethodGet, "/v1/favorite-departments", "")
	assert.Empty(t, body["list"])
}

func TestGateway_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ok", body["status"])

	resp, err := http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.store.Close()
	code, body = s.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Unavailable", body["status"])
}
