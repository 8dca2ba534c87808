package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"example.com/mergington/internal/auth"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/middleware"
	"example.com/mergington/internal/store/memory"
)

func newTestRouter(t *testing.T, store domain.Store, routes Routes) *mux.Router {
	t.Helper()
	handler := NewHandler(domain.NewService(store), zaptest.NewLogger(t))
	router := mux.NewRouter()
	handler.RegisterRoutes(router, routes)
	return router
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	seeded, err := domain.Bootstrap(context.Background(), store, domain.SeedCatalog())
	require.NoError(t, err)
	require.True(t, seeded)
	return store
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decodeActivities(t *testing.T, rr *httptest.ResponseRecorder) map[string]ActivityView {
	t.Helper()
	var resp map[string]ActivityView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestListActivities(t *testing.T) {
	router := newTestRouter(t, seededStore(t), Routes{})

	rr := do(t, router, http.MethodGet, "/activities")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decodeActivities(t, rr)
	require.Len(t, resp, 9)
	require.Equal(t, ActivityView{
		Description:     "Learn strategies and compete in chess tournaments",
		Schedule:        "Fridays, 3:30 PM - 5:00 PM",
		MaxParticipants: 12,
		Participants:    []string{"michael@mergington.edu", "daniel@mergington.edu"},
	}, resp["Chess Club"])
}

func TestListActivitiesEmptyStore(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), Routes{})

	rr := do(t, router, http.MethodGet, "/activities")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{}`, rr.Body.String())
}

func TestSignUpThenUnregister(t *testing.T) {
	router := newTestRouter(t, seededStore(t), Routes{})

	rr := do(t, router, http.MethodPost, "/activities/Chess%20Club/signup?email=new@mergington.edu")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Signed up new@mergington.edu for Chess Club", decodeBody(t, rr)["message"])

	chess := decodeActivities(t, do(t, router, http.MethodGet, "/activities"))["Chess Club"]
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu", "new@mergington.edu"}, chess.Participants)

	rr = do(t, router, http.MethodPost, "/activities/Chess%20Club/unregister?email=michael@mergington.edu")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Unregistered michael@mergington.edu from Chess Club", decodeBody(t, rr)["message"])

	chess = decodeActivities(t, do(t, router, http.MethodGet, "/activities"))["Chess Club"]
	require.Equal(t, []string{"daniel@mergington.edu", "new@mergington.edu"}, chess.Participants)
}

func TestRosterErrors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		status int
		code   string
		detail string
	}{
		{
			name:   "signup unknown activity",
			target: "/activities/Underwater%20Basket%20Weaving/signup?email=a@mergington.edu",
			status: http.StatusNotFound,
			code:   "not_found",
			detail: "Activity not found",
		},
		{
			name:   "signup duplicate",
			target: "/activities/Chess%20Club/signup?email=michael@mergington.edu",
			status: http.StatusBadRequest,
			code:   "already_signed_up",
			detail: "Student already signed up for this activity",
		},
		{
			name:   "unregister unknown activity",
			target: "/activities/Underwater%20Basket%20Weaving/unregister?email=a@mergington.edu",
			status: http.StatusNotFound,
			code:   "not_found",
			detail: "Activity not found",
		},
		{
			name:   "unregister absent email",
			target: "/activities/Chess%20Club/unregister?email=nobody@mergington.edu",
			status: http.StatusBadRequest,
			code:   "not_signed_up",
			detail: "Student not registered for this activity",
		},
		{
			name:   "signup missing email",
			target: "/activities/Chess%20Club/signup",
			status: http.StatusUnprocessableEntity,
			code:   "validation_failed",
			detail: "email query parameter is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, seededStore(t), Routes{})
			rr := do(t, router, http.MethodPost, tc.target)
			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, map[string]string{"type": tc.code, "detail": tc.detail}, decodeBody(t, rr))
		})
	}
}

func TestSignUpIgnoresCapacity(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.InsertMany(context.Background(), []domain.Activity{{
		Name:            "Tiny Club",
		Description:     "Only one seat",
		Schedule:        "Never",
		MaxParticipants: 1,
		Participants:    []string{"first@mergington.edu"},
	}}))
	router := newTestRouter(t, store, Routes{})

	rr := do(t, router, http.MethodPost, "/activities/Tiny%20Club/signup?email=second@mergington.edu")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestEmptyEmailIsAccepted(t *testing.T) {
	router := newTestRouter(t, seededStore(t), Routes{})

	rr := do(t, router, http.MethodPost, "/activities/Chess%20Club/signup?email=")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Signed up  for Chess Club", decodeBody(t, rr)["message"])
}

func TestWrongMethodIsRejected(t *testing.T) {
	router := newTestRouter(t, seededStore(t), Routes{})

	rr := do(t, router, http.MethodGet, "/activities/Chess%20Club/signup?email=a@mergington.edu")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestGuardWritesWrapsOnlyRosterRoutes(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router := newTestRouter(t, seededStore(t), Routes{GuardWrites: deny})

	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/activities").Code)
	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/activities/Chess%20Club/signup?email=a@mergington.edu").Code)
	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodPost, "/activities/Chess%20Club/unregister?email=michael@mergington.edu").Code)
}

func TestRootRedirectsToIndex(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), Routes{})

	rr := do(t, router, http.MethodGet, "/")
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Equal(t, "/static/index.html", rr.Header().Get("Location"))
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi');"), 0o600))
	router := newTestRouter(t, memory.NewStore(), Routes{StaticDir: dir})

	rr := do(t, router, http.MethodGet, "/static/app.js")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "console.log('hi');", rr.Body.String())

	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/static/missing.js").Code)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), Routes{})

	rr := do(t, router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) List(context.Context) ([]domain.Activity, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Find(context.Context, string) (*domain.Activity, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureMapsToServerError(t *testing.T) {
	router := newTestRouter(t, brokenStore{Store: memory.NewStore()}, Routes{})

	rr := do(t, router, http.MethodGet, "/activities")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "server_error", decodeBody(t, rr)["type"])

	rr = do(t, router, http.MethodPost, "/activities/Chess%20Club/signup?email=a@mergington.edu")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

func TestPreflightAnsweredOnEveryActivityRoute(t *testing.T) {
	handler := NewHandler(domain.NewService(seededStore(t)), zaptest.NewLogger(t))
	router := mux.NewRouter()
	router.Use(middleware.Logging(zap.NewNop()), middleware.Metrics(), middleware.NewCORS([]string{"*"}).Handler)
	handler.RegisterRoutes(router, Routes{})

	for _, target := range []string{"/activities", "/activities/Chess%20Club/signup", "/activities/Chess%20Club/unregister"} {
		req := httptest.NewRequest(http.MethodOptions, target, nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code, target)
		require.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"), target)
	}
}

func TestRosterChangeLogsAuthenticatedSubject(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := NewHandler(domain.NewService(seededStore(t)), zap.New(core))
	router := mux.NewRouter()
	handler.RegisterRoutes(router, Routes{})

	req := httptest.NewRequest(http.MethodPost, "/activities/Chess%20Club/signup?email=new@mergington.edu", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: "coach@mergington.edu"}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	entries := logs.FilterMessage("roster changed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "coach@mergington.edu", fields["subject"])
	require.Equal(t, "Chess Club", fields["activity"])
	require.Equal(t, "new@mergington.edu", fields["email"])
}

func TestStaticIndexServedWithoutRedirect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Mergington High</h1>"), 0o600))
	router := newTestRouter(t, memory.NewStore(), Routes{StaticDir: dir})

	rr := do(t, router, http.MethodGet, "/static/index.html")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "<h1>Mergington High</h1>", rr.Body.String())
	require.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	empty := newTestRouter(t, memory.NewStore(), Routes{StaticDir: t.TempDir()})
	require.Equal(t, http.StatusNotFound, do(t, empty, http.MethodGet, "/static/index.html").Code)
}
