package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/teamdesk/teamdesk/internal/httpmw"
	"github.com/teamdesk/teamdesk/pkg/besteffort"
	"github.com/teamdesk/teamdesk/pkg/jsonutil"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the persistence surface the HTTP handler needs.
type Store interface {
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	Dismiss(ctx context.Context, userID, id string) error
	Preferences(ctx context.Context, userID string) (*Preferences, error)
	SavePreferences(ctx context.Context, p *Preferences) error
}

// EventQueue enqueues raw event envelopes for asynchronous routing.
type EventQueue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Handler serves the user-facing notification API and the internal
// dispatch endpoint. When a queue is wired, accepted envelopes are
// enqueued and picked up by the consume loop; otherwise they are routed
// in the background.
type Handler struct {
	store     Store
	consumer  *Consumer
	queue     EventQueue
	queueName string
	logger    *observability.Logger
}

func NewHandler(store Store, consumer *Consumer, queue EventQueue, queueName string, logger *observability.Logger) *Handler {
	return &Handler{
		store:     store,
		consumer:  consumer,
		queue:     queue,
		queueName: queueName,
		logger:    logger.Named("http"),
	}
}

// RegisterRoutes mounts the user API on the given router. The caller wraps
// the router with auth middleware.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/notifications", h.List).Methods(http.MethodGet)
	r.HandleFunc("/notifications/unread-count", h.UnreadCount).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read-all", h.MarkAllRead).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/read", h.MarkRead).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/dismiss", h.Dismiss).Methods(http.MethodPost)
	r.HandleFunc("/preferences", h.GetPreferences).Methods(http.MethodGet)
	r.HandleFunc("/preferences", h.PutPreferences).Methods(http.MethodPut)
}

// RegisterInternalRoutes mounts the service-to-service API. The caller wraps
// the router with service-key auth.
func (h *Handler) RegisterInternalRoutes(r *mux.Router) {
	r.HandleFunc("/dispatch", h.Dispatch).Methods(http.MethodPost)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmw.IdentityFrom(r.Context())
	if !ok {
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	items, err := h.store.ListForUser(r.Context(), id.UserID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications", "user_id", id.UserID, "error", err)
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if items == nil {
		items = []*Notification{}
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"limit":         limit,
		"offset":        offset,
	})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmw.IdentityFrom(r.Context())
	if !ok {
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	count, err := h.store.UnreadCount(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to count unread notifications", "user_id", id.UserID, "error", err)
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to count unread notifications")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.mutateOne(w, r, h.store.MarkRead)
}

func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.mutateOne(w, r, h.store.Dismiss)
}

func (h *Handler) mutateOne(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, id string) error) {
	id, ok := httpmw.IdentityFrom(r.Context())
	if !ok {
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	notifID := mux.Vars(r)["id"]
	if err := op(r.Context(), id.UserID, notifID); err != nil {
		if errors.Is(err, ErrNotFound) {
			jsonutil.WriteErrorJSON(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to update notification", "user_id", id.UserID, "id", notifID, "error", err)
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmw.IdentityFrom(r.Context())
	if !ok {
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := h.store.MarkAllRead(r.Context(), id.UserID); err != nil {
		h.logger.Error("failed to mark all read", "user_id", id.UserID, "error", err)
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmw.IdentityFrom(r.Context())
	if !ok {
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	prefs, err := h.store.Preferences(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to load preferences", "user_id", id.UserID, "error", err)
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	if prefs == nil {
		prefs = DefaultPreferences(id.UserID)
	}
	jsonutil.WriteJSON(w, http.StatusOK, prefs)
}

func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := httpmw.IdentityFrom(r.Context())
	if !ok {
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	var prefs Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid preferences body")
		return
	}
	prefs.UserID = id.UserID
	if err := h.store.SavePreferences(r.Context(), &prefs); err != nil {
		h.logger.Error("failed to save preferences", "user_id", id.UserID, "error", err)
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, prefs)
}

// Dispatch accepts an event envelope from another service. The envelope is
// validated synchronously so the caller gets a 400 for garbage, then handed
// off before the response: enqueued when a queue is wired, otherwise routed
// through the best-effort wrapper in the background. The 202 never waits on
// the per-recipient fan-out, and per-recipient failures are logged, not
// reported, matching queue delivery semantics.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid event envelope")
		return
	}
	if ev.Type == "" {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "event type is required")
		return
	}
	if err := h.consumer.ValidateData(&ev); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.queue != nil {
		err := h.queue.Publish(r.Context(), h.queueName, body)
		if err == nil {
			jsonutil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event_id": ev.ID})
			return
		}
		h.logger.Warn("failed to enqueue event, routing directly", "event_id", ev.ID, "error", err)
	}
	// The request context dies with the response, so route on a fresh one.
	besteffort.Go(context.Background(), h.logger, "notify.dispatch", func(ctx context.Context) error {
		return h.consumer.Route(ctx, &ev)
	})
	jsonutil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event_id": ev.ID})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
