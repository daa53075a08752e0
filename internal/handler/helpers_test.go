package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const testSecret = "test-secret"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, userID, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func concert() *model.Event {
	return &model.Event{
		ID: 7, OwnerID: 42, Name: "Lagos Jazz Night", Slug: "lagos-jazz-night",
		StartsAt: testNow.Add(48 * time.Hour), EndsAt: testNow.Add(52 * time.Hour),
		IsPublished: true, IsActive: true,
	}
}

// fakeEvents serves a fixed set of events keyed by slug.
type fakeEvents struct {
	mu      sync.Mutex
	bySlug  map[string]*model.Event
	created []*model.Event
}

func newFakeEvents(evs ...*model.Event) *fakeEvents {
	f := &fakeEvents{bySlug: map[string]*model.Event{}}
	for _, e := range evs {
		f.bySlug[e.Slug] = e
	}
	return f
}

func (f *fakeEvents) GetBySlug(_ context.Context, slug string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.bySlug[slug]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeEvents) GetOnSaleBySlug(ctx context.Context, slug string, now time.Time) (*model.Event, error) {
	e, err := f.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !e.OnSale(now) {
		return nil, repository.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeEvents) Create(_ context.Context, e *model.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uint64(100 + len(f.created))
	e.Slug = strings.ReplaceAll(strings.ToLower(e.Name), " ", "-")
	f.created = append(f.created, e)
	f.bySlug[e.Slug] = e
	return nil
}

func (f *fakeEvents) ListPublished(_ context.Context, now time.Time, limit, offset int) ([]repository.EventListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.EventListing
	for _, e := range f.bySlug {
		if e.OnSale(now) {
			min := decimal.RequireFromString("1500")
			out = append(out, repository.EventListing{Event: *e, MinPrice: &min})
		}
	}
	return out, nil
}

// fakeUsers is an in-memory account table.
type fakeUsers struct {
	mu     sync.Mutex
	byID   map[uint64]*model.User
	nextID uint64
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uint64]*model.User{}, nextID: 1000}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) CreateWithWallet(_ context.Context, email, fullName, password, role string, cost int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	f.nextID++
	f.byID[f.nextID] = &model.User{ID: f.nextID, Email: email, FullName: fullName, PasswordHash: hash, Role: role, IsActive: true}
	return f.nextID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}
