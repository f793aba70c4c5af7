package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/binder"
	"github.com/zayyadi/paroll-sub001/pkg/httpserver"
	"github.com/zayyadi/paroll-sub001/pkg/logger"
	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/notifier"
	"github.com/zayyadi/paroll-sub001/pkg/preference"
	"github.com/zayyadi/paroll-sub001/pkg/push"
	"github.com/zayyadi/paroll-sub001/pkg/realtime"
	"github.com/zayyadi/paroll-sub001/pkg/requestid"
)

type routerDeps struct {
	svc      *notifier.Service
	prefs    *preference.Service
	registry push.TokenRegistry
	ws       http.Handler
	auth     realtime.Authenticator
	logger   *slog.Logger
	health   []func(context.Context) error
}

// newRouter builds the module's HTTP surface. Everything except the
// health probe requires an authenticated recipient; recipients can only
// ever see and mutate their own notifications.
func newRouter(d routerDeps) chi.Router {
	h := &restHandler{deps: d}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.HealthCheckHandler(context.Background(), d.logger, d.health...))

	r.Group(func(r chi.Router) {
		r.Use(h.withRecipient)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.list)
			r.Delete("/", h.deleteAll)
			r.Get("/unread-count", h.unreadCount)
			r.Post("/read-all", h.markAllRead)
			r.Get("/{id}", h.get)
			r.Delete("/{id}", h.delete)
			r.Post("/{id}/read", h.markRead)
			r.Post("/{id}/unread", h.markUnread)
		})

		r.Get("/preferences", h.getPreferences)
		r.Put("/preferences", h.updatePreferences)

		r.Post("/devices", h.registerDevice)
		r.Delete("/devices/{token}", h.removeDevice)
	})

	// The WebSocket handler authenticates on its own so it can close
	// with protocol-level codes instead of an HTTP status.
	r.Get("/ws", d.ws.ServeHTTP)

	return r
}

type restHandler struct {
	deps routerDeps
}

type recipientKey struct{}

func (h *restHandler) withRecipient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.deps.auth.Authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), recipientKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recipientID(r *http.Request) string {
	id, _ := r.Context().Value(recipientKey{}).(string)
	return id
}

func (h *restHandler) list(w http.ResponseWriter, r *http.Request) {
	opts := notification.ListOptions{Limit: 50}

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		opts.Offset = n
	}
	opts.OnlyUnread = q.Get("unread") == "true"
	for _, t := range q["type"] {
		opts.Types = append(opts.Types, notification.Type(t))
	}

	list, err := h.deps.svc.List(r.Context(), recipientID(r), opts)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *restHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	n, err := h.deps.svc.Get(r.Context(), recipientID(r), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (h *restHandler) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.deps.svc.UnreadCount(r.Context(), recipientID(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *restHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.deps.svc.MarkRead(r.Context(), recipientID(r), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) markUnread(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.deps.svc.MarkUnread(r.Context(), recipientID(r), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.deps.svc.MarkAllRead(r.Context(), recipientID(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *restHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.deps.svc.Delete(r.Context(), recipientID(r), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) deleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.deps.svc.DeleteAll(r.Context(), recipientID(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *restHandler) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.prefs.Get(r.Context(), recipientID(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *restHandler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var p preference.Preference
	if err := binder.JSON()(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The body cannot redirect the update to another recipient.
	p.Recipient = recipientID(r)

	if err := h.deps.prefs.Update(r.Context(), p); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *restHandler) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := binder.JSON()(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	err := h.deps.registry.Register(r.Context(), push.DeviceToken{
		Recipient: recipientID(r),
		Token:     req.Token,
		Platform:  req.Platform,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *restHandler) removeDevice(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.deps.registry.Remove(r.Context(), recipientID(r), token); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notification.ErrNotFound):
		respondError(w, http.StatusNotFound, "notification not found")
	case errors.Is(err, push.ErrTokenNotFound):
		respondError(w, http.StatusNotFound, "device token not found")
	case errors.Is(err, push.ErrInvalidToken):
		respondError(w, http.StatusBadRequest, "invalid device token")
	case errors.Is(err, notification.ErrValidation), errors.Is(err, preference.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.deps.logger.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestid.FromContext(r.Context())),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return uuid.Nil, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
