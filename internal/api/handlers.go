// Package api exposes HTTP handlers for the activity directory.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"example.com/mergington/internal/auth"
	"example.com/mergington/internal/domain"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes configures optional parts of the route table.
type Routes struct {
	// StaticDir is served under /static/; empty disables the file server.
	StaticDir string
	// GuardWrites wraps the roster-changing routes; nil leaves them open.
	GuardWrites func(http.Handler) http.Handler
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(router *mux.Router, routes Routes) {
	guard := routes.GuardWrites
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}

	router.HandleFunc("/", redirectToIndex).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	// OPTIONS is matched so CORS preflights reach the middleware chain.
	router.HandleFunc("/activities", h.listActivities).Methods(http.MethodGet, http.MethodOptions)
	router.Handle("/activities/{activityName}/signup", guard(http.HandlerFunc(h.signUp))).
		Methods(http.MethodPost, http.MethodOptions)
	router.Handle("/activities/{activityName}/unregister", guard(http.HandlerFunc(h.unregister))).
		Methods(http.MethodPost, http.MethodOptions)

	if routes.StaticDir != "" {
		// http.FileServer would answer index.html with a redirect to the directory.
		router.Handle("/static/index.html", serveIndex(routes.StaticDir)).
			Methods(http.MethodGet, http.MethodHead)
		router.PathPrefix("/static/").
			Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(routes.StaticDir)))).
			Methods(http.MethodGet, http.MethodHead)
	}
}

func redirectToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/static/index.html", http.StatusTemporaryRedirect)
}

func serveIndex(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(filepath.Join(dir, "index.html"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ActivityView is the wire shape of a single activity; the name is the map key.
type ActivityView struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// MessageResponse carries the confirmation for roster changes.
type MessageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	activities, err := h.service.ListActivities(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	resp := make(map[string]ActivityView, len(activities))
	for name, a := range activities {
		resp[name] = toActivityView(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	h.changeRoster(w, r, h.service.SignUp)
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	h.changeRoster(w, r, h.service.Unregister)
}

func (h *Handler) changeRoster(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, activityName, email string) (string, error)) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	activityName := mux.Vars(r)["activityName"]

	query := r.URL.Query()
	if !query.Has("email") {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "email query parameter is required")
		return
	}

	email := query.Get("email")
	message, err := change(r.Context(), activityName, email)
	switch {
	case err == nil:
		fields := []zap.Field{zap.String("result", message), zap.String("activity", activityName), zap.String("email", email)}
		if claims, ok := auth.FromContext(r.Context()); ok {
			fields = append(fields, zap.String("subject", claims.Subject))
		}
		h.logger.Info("roster changed", fields...)
		writeJSON(w, http.StatusOK, MessageResponse{Message: message})
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
	case errors.Is(err, domain.ErrAlreadySignedUp):
		writeError(w, http.StatusBadRequest, "already_signed_up", "Student already signed up for this activity")
	case errors.Is(err, domain.ErrNotSignedUp):
		writeError(w, http.StatusBadRequest, "not_signed_up", "Student not registered for this activity")
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a domain.Activity) ActivityView {
	participants := a.Participants
	if participants == nil {
		participants = []string{}
	}
	return ActivityView{
		Description:     a.Description,
		Schedule:        a.Schedule,
		MaxParticipants: a.MaxParticipants,
		Participants:    participants,
	}
}
