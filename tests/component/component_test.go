//go:build component

package component

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-pg/pg/v10"
	"github.com/google/uuid"
	"github.com/rbroggi/souqly/internal/actors/pubsub/wire"
	"github.com/rbroggi/souqly/internal/config"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const password = "Sup3r$ecret"

// ComponentTestSuite drives a running server over HTTP, backed by postgres with pubsub enabled.
type ComponentTestSuite struct {
	suite.Suite
	db      *pg.DB
	baseURL string
	http    *http.Client

	cnl          context.CancelFunc
	pubsubClient *pubsub.Client
	wg           *sync.WaitGroup
	events       <-chan model.AccountEvent

	// internal state persisted cross method calls
	registerArgs model.RegisterArgs
	account      model.Account
	updated      model.Account
}

func (s *ComponentTestSuite) SetupTest() {
	s.registerArgs = model.RegisterArgs{}
	s.account = model.Account{}
	s.updated = model.Account{}
	// every test starts as a guest with empty guest collections
	s.call(http.MethodDelete, "/v1/session", nil, nil)
	s.call(http.MethodDelete, "/v1/cart", nil, nil)
	s.call(http.MethodDelete, "/v1/favorites", nil, nil)
	s.call(http.MethodDelete, "/v1/favorite-departments", nil, nil)
}

func (s *ComponentTestSuite) TearDownSuite() {
	s.Require().NoError(s.db.Close())
	s.cnl()
	s.wg.Wait()
	s.pubsubClient.Close()
}

func TestComponentTestSuite(t *testing.T) {
	cfg, err := config.Load(os.Getenv("SOUQLY_CONFIG"))
	require.NoError(t, err)

	baseURL := os.Getenv("SOUQLY_HTTP_URL")
	if baseURL == "" {
		baseURL = "http://" + cfg.HTTP.Addr
	}
	subscriptionID := os.Getenv("COMPONENT_SUBSCRIPTION_ID")
	if subscriptionID == "" {
		subscriptionID = "component.souqly.AccountEvents.sub"
	}
	if os.Getenv("PUBSUB_EMULATOR_HOST") == "" {
		t.Setenv("PUBSUB_EMULATOR_HOST", "localhost:8085")
	}

	// Postgres connection (only for asserting on the persisted key space)
	opts, err := pg.ParseURL(cfg.Postgres.URL)
	require.NoError(t, err)
	db := pg.Connect(opts)
	require.NoError(t, db.Ping(context.Background()))

	// pubsub consumer of public events
	ctx, cnl := context.WithCancel(context.Background())
	client, err := pubsub.NewClient(ctx, cfg.PubSub.Project)
	require.NoError(t, err)
	wg := &sync.WaitGroup{}
	ch := make(chan model.AccountEvent, 10)
	wg.Add(1)
	go func() {
		defer func() {
			close(ch)
			wg.Done()
		}()
		_ = client.Subscription(subscriptionID).Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			event, err := wire.Decode(msg.Data)
			msg.Ack()
			if err != nil {
				return
			}
			select {
			case ch <- event:
			case <-ctx.Done():
			}
		})
	}()

	suite.Run(t, &ComponentTestSuite{
		db:           db,
		baseURL:      baseURL,
		http:         &http.Client{Timeout: 5 * time.Second},
		cnl:          cnl,
		pubsubClient: client,
		wg:           wg,
		events:       ch,
	})
}

type given = func() *ComponentTestSuite
type when = func() *ComponentTestSuite
type then = func() *ComponentTestSuite

func (s *ComponentTestSuite) gherkin() (given, when, then) {
	return func() *ComponentTestSuite { return s }, func() *ComponentTestSuite { return s }, func() *ComponentTestSuite { return s }
}

// call issues a JSON request and decodes the response into out, when not nil.
func (s *ComponentTestSuite) call(method, path string, in, out any) int {
	var body bytes.Buffer
	if in != nil {
		s.Require().NoError(json.NewEncoder(&body).Encode(in))
	}
	req, err := http.NewRequest(method, s.baseURL+path, &body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < http.StatusBadRequest && resp.StatusCode != http.StatusNoContent {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *ComponentTestSuite) aRegistrationIsIssued() *ComponentTestSuite {
	s.registerArgs = model.RegisterArgs{
		FirstName:       "Joe",
		LastName:        "Doe",
		Email:           "joe." + uuid.NewString() + "@example.com",
		Country:         "EG",
		Password:        password,
		ConfirmPassword: password,
	}
	s.Require().Equal(http.StatusCreated, s.call(http.MethodPost, "/v1/accounts", s.registerArgs, &s.account))
	return s
}

func (s *ComponentTestSuite) anExistingSignedOutAccount() *ComponentTestSuite {
	s.aRegistrationIsIssued()
	s.Require().Equal(http.StatusNoContent, s.call(http.MethodDelete, "/v1/session", nil, nil))
	return s
}

func (s *ComponentTestSuite) aSignedInAccount() *ComponentTestSuite {
	return s.aRegistrationIsIssued().theSessionIsAuthenticated()
}

func (s *ComponentTestSuite) aGuestCartWith(product model.Product) *ComponentTestSuite {
	s.Require().Equal(http.StatusOK, s.call(http.MethodPost, "/v1/cart/items", product, nil))
	return s
}

func (s *ComponentTestSuite) theShopperSignsIn() *ComponentTestSuite {
	login := map[string]string{"email": s.registerArgs.Email, "password": s.registerArgs.Password}
	s.Require().Equal(http.StatusOK, s.call(http.MethodPost, "/v1/session", login, nil))
	return s
}

func (s *ComponentTestSuite) theProfileGetsUpdated() *ComponentTestSuite {
	city := "Alexandria"
	update := model.UpdateProfileArgs{City: &city}
	s.Require().Equal(http.StatusOK, s.call(http.MethodPatch, "/v1/profile", update, &s.updated))
	return s
}

func (s *ComponentTestSuite) theAccountGetsDeleted() *ComponentTestSuite {
	s.Require().Equal(http.StatusNoContent, s.call(http.MethodDelete, "/v1/profile", nil, nil))
	return s
}

func (s *ComponentTestSuite) theRegisteredAccountIsValid() *ComponentTestSuite {
	s.Require().NotEmpty(s.account.ID)
	s.Require().Equal(s.registerArgs.Email, s.account.Email)
	s.Require().Equal(s.registerArgs.FirstName, s.account.FirstName)
	s.Require().Empty(s.account.PasswordHash)
	return s
}

func (s *ComponentTestSuite) theSessionIsAuthenticated() *ComponentTestSuite {
	var session struct {
		Authenticated bool           `json:"authenticated"`
		Account       *model.Account `json:"account"`
	}
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/v1/session", nil, &session))
	s.Require().True(session.Authenticated)
	s.Require().NotNil(session.Account)
	s.Require().Equal(s.account.ID, session.Account.ID)
	return s
}

func (s *ComponentTestSuite) theSessionIsAnonymous() *ComponentTestSuite {
	var session struct {
		Authenticated bool `json:"authenticated"`
	}
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/v1/session", nil, &session))
	s.Require().False(session.Authenticated)
	return s
}

func (s *ComponentTestSuite) theCartContains(product model.Product, quantity int) *ComponentTestSuite {
	var cart struct {
		Items []model.CartItem `json:"items"`
	}
	s.Require().Equal(http.StatusOK, s.call(http.MethodGet, "/v1/cart", nil, &cart))
	s.Require().Len(cart.Items, 1)
	s.Require().Equal(product.ID, cart.Items[0].ID)
	s.Require().Equal(quantity, cart.Items[0].Quantity)
	return s
}

func (s *ComponentTestSuite) theKeyIsPersisted(key string, persisted bool) *ComponentTestSuite {
	var count int
	_, err := s.db.QueryOne(pg.Scan(&count), "SELECT count(*) FROM souqly.kv WHERE key = ?", key)
	s.Require().NoError(err)
	if persisted {
		s.Require().Equal(1, count, key)
	} else {
		s.Require().Zero(count, key)
	}
	return s
}

func (s *ComponentTestSuite) profileAccessIsRefused() *ComponentTestSuite {
	s.Require().Equal(http.StatusUnauthorized, s.call(http.MethodGet, "/v1/profile", nil, nil))
	return s
}

// anEventWillEventuallyBeProduced waits for an event about the account matching accept.
func (s *ComponentTestSuite) anEventWillEventuallyBeProduced(accept func(model.AccountEvent) bool) *ComponentTestSuite {
	timeoutCh := time.After(time.Second * 5)
	for {
		select {
		case event, more := <-s.events:
			if !more {
				s.FailNow("channel closed before reaching desired event")
			}
			if event.AccountID() == s.account.ID && accept(event) {
				return s
			}
		case <-timeoutCh:
			s.FailNow("timeout before receiving the account event")
		}
	}
}

func (s *ComponentTestSuite) aRegistrationEventWillEventuallyBeProduced() *ComponentTestSuite {
	return s.anEventWillEventuallyBeProduced(func(event model.AccountEvent) bool {
		return event.Before == nil && event.After != nil && event.After.PasswordHash == ""
	})
}

func (s *ComponentTestSuite) anUpdateEventWillEventuallyBeProduced() *ComponentTestSuite {
	return s.anEventWillEventuallyBeProduced(func(event model.AccountEvent) bool {
		if event.Before == nil || event.After == nil {
			return false
		}
		s.Require().Equal(s.account.City, event.Before.City)
		s.Require().Equal(s.updated.City, event.After.City)
		return true
	})
}

func (s *ComponentTestSuite) aDeletionEventWillEventuallyBeProduced() *ComponentTestSuite {
	return s.anEventWillEventuallyBeProduced(func(event model.AccountEvent) bool {
		return event.Before != nil && event.After == nil
	})
}
