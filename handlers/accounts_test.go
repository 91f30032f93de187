package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gorilla/mux"

	"nextreel/internal/auth"
	"nextreel/models"
)

type fakeAccountAdmin struct {
	accounts []models.Account
	fail     bool
}

func (f *fakeAccountAdmin) List() ([]models.Account, error) {
	if f.fail {
		return nil, errors.New("db locked")
	}
	return f.accounts, nil
}

// asMaster injects an authenticated identity carrying the master flag.
func asMaster(isMaster bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), auth.ContextKeyAccountID, "acct-1")
			ctx = context.WithValue(ctx, auth.ContextKeyIsMaster, isMaster)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newAccountsTestRouter(t *testing.T, admin *fakeAccountAdmin, isMaster bool) *mux.Router {
	t.Helper()
	r := mux.NewRouter()
	r.Use(asMaster(isMaster))
	NewAccountsHandler(admin).RegisterRoutes(r)
	return r
}

func TestListAccountsEndpoint(t *testing.T) {
	admin := &fakeAccountAdmin{accounts: []models.Account{
		{ID: "id-1", Username: "admin", IsMaster: true},
		{ID: "id-2", Username: "alice"},
	}}
	r := newAccountsTestRouter(t, admin, true)

	rec := doJSON(t, r, http.MethodGet, "/api/accounts", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var got []models.Account
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || !got[0].IsMaster {
		t.Fatalf("unexpected account list: %+v", got)
	}
}

func TestListAccountsRequiresMaster(t *testing.T) {
	r := newAccountsTestRouter(t, &fakeAccountAdmin{}, false)

	rec := doJSON(t, r, http.MethodGet, "/api/accounts", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestListAccountsEmpty(t *testing.T) {
	r := newAccountsTestRouter(t, &fakeAccountAdmin{}, true)

	rec := doJSON(t, r, http.MethodGet, "/api/accounts", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestListAccountsRepositoryFailure(t *testing.T) {
	r := newAccountsTestRouter(t, &fakeAccountAdmin{fail: true}, true)

	rec := doJSON(t, r, http.MethodGet, "/api/accounts", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
