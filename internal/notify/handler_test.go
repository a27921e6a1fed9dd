package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/teamdesk/teamdesk/internal/httpmw"
	"github.com/teamdesk/teamdesk/pkg/observability"
)

func newTestRouter(db *MockDB) *mux.Router {
	repo := NewRepositoryWithDB(db)
	d := testDispatcher(nil, nil, nil, nil)
	h := NewHandler(repo, NewConsumer(d, observability.NewLogger("test")), nil, "", observability.NewLogger("test"))
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())
	h.RegisterInternalRoutes(r.PathPrefix("/internal/v1").Subrouter())
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(httpmw.WithIdentity(req.Context(), &httpmw.Identity{UserID: userID}))
}

func TestHandler_UnreadCount(t *testing.T) {
	db := &MockDB{
		QueryRowContextFunc: func(ctx context.Context, query string, args ...any) Row {
			if args[0] != "user-1" {
				t.Errorf("count scoped to %v, want user-1", args[0])
			}
			return &MockRow{ScanFunc: func(dest ...any) error {
				*(dest[0].(*int)) = 3
				return nil
			}}
		},
	}
	r := newTestRouter(db)

	req := asUser(httptest.NewRequest("GET", "/api/v1/notifications/unread-count", nil), "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"unread":3`) {
		t.Errorf("body = %s, want unread 3", w.Body.String())
	}
}

func TestHandler_Unauthenticated(t *testing.T) {
	r := newTestRouter(&MockDB{})
	req := httptest.NewRequest("GET", "/api/v1/notifications", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandler_MarkRead_NotFound(t *testing.T) {
	db := &MockDB{
		ExecContextFunc: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
			return &MockResult{RowsAffectedFunc: func() (int64, error) { return 0, nil }}, nil
		},
	}
	r := newTestRouter(db)

	req := asUser(httptest.NewRequest("POST", "/api/v1/notifications/missing-id/read", nil), "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandler_GetPreferences_DefaultsWhenMissing(t *testing.T) {
	db := &MockDB{
		QueryRowContextFunc: func(ctx context.Context, query string, args ...any) Row {
			return &MockRow{ScanFunc: func(dest ...any) error { return sql.ErrNoRows }}
		},
	}
	r := newTestRouter(db)

	req := asUser(httptest.NewRequest("GET", "/api/v1/preferences", nil), "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"chat_messages":true`) {
		t.Errorf("missing preferences must serve defaults, got %s", w.Body.String())
	}
}

func TestHandler_PutPreferences_IgnoresBodyUserID(t *testing.T) {
	var savedUser any
	db := &MockDB{
		ExecContextFunc: func(ctx context.Context, query string, args ...any) (sql.Result, error) {
			savedUser = args[0]
			return &MockResult{}, nil
		},
	}
	r := newTestRouter(db)

	body := `{"user_id":"someone-else","chat_messages":false}`
	req := asUser(httptest.NewRequest("PUT", "/api/v1/preferences", strings.NewReader(body)), "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if savedUser != "user-1" {
		t.Errorf("saved preferences for %v, want the authenticated user", savedUser)
	}
}

func TestHandler_Dispatch(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "valid envelope",
			body:           `{"id":"e1","type":"task.assigned","actor":{"id":"a","name":"Alice"},"data":{"task_id":"t1","title":"Ship it","recipients":["user-2"]}}`,
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "malformed json",
			body:           `{not json`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing type",
			body:           `{"id":"e1","actor":{"id":"a"},"data":{}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad event data",
			body:           `{"id":"e1","type":"task.assigned","actor":{"id":"a"},"data":"nope"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&MockDB{})
			req := httptest.NewRequest("POST", "/internal/v1/dispatch", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}
}

type fakeQueue struct {
	publishFunc func(ctx context.Context, queueName string, body []byte) error
}

func (q *fakeQueue) Publish(ctx context.Context, queueName string, body []byte) error {
	return q.publishFunc(ctx, queueName, body)
}

func dispatchRouter(store *MockWriter, queue EventQueue) *mux.Router {
	d := testDispatcher(store, nil, nil, nil)
	h := NewHandler(NewRepositoryWithDB(&MockDB{}), NewConsumer(d, observability.NewLogger("test")), queue, "notify.events", observability.NewLogger("test"))
	r := mux.NewRouter()
	h.RegisterInternalRoutes(r.PathPrefix("/internal/v1").Subrouter())
	return r
}

const dispatchBody = `{"id":"e1","type":"task.assigned","actor":{"id":"a","name":"Alice"},"data":{"task_id":"t1","title":"Ship it","recipients":["user-2"]}}`

func TestHandler_DispatchEnqueuesWhenQueueWired(t *testing.T) {
	var gotQueue string
	var gotBody []byte
	queue := &fakeQueue{publishFunc: func(ctx context.Context, queueName string, body []byte) error {
		gotQueue = queueName
		gotBody = body
		return nil
	}}
	store := &MockWriter{CreateOrRefreshFunc: func(ctx context.Context, n *Notification) error {
		t.Error("enqueued event must not be routed in-process")
		return nil
	}}
	r := dispatchRouter(store, queue)

	req := httptest.NewRequest("POST", "/internal/v1/dispatch", strings.NewReader(dispatchBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", w.Code, w.Body.String())
	}
	if gotQueue != "notify.events" {
		t.Errorf("published to queue %q, want notify.events", gotQueue)
	}
	var ev Event
	if err := json.Unmarshal(gotBody, &ev); err != nil {
		t.Fatalf("published body is not an envelope: %v", err)
	}
	if ev.ID != "e1" || ev.Type != EventTaskAssigned {
		t.Errorf("published envelope = %s/%s, want e1/%s", ev.ID, ev.Type, EventTaskAssigned)
	}
}

func TestHandler_DispatchRoutesDirectlyWhenEnqueueFails(t *testing.T) {
	queue := &fakeQueue{publishFunc: func(ctx context.Context, queueName string, body []byte) error {
		return errors.New("broker down")
	}}
	persisted := make(chan *Notification, 1)
	store := &MockWriter{CreateOrRefreshFunc: func(ctx context.Context, n *Notification) error {
		persisted <- n
		return nil
	}}
	r := dispatchRouter(store, queue)

	req := httptest.NewRequest("POST", "/internal/v1/dispatch", strings.NewReader(dispatchBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", w.Code, w.Body.String())
	}
	select {
	case n := <-persisted:
		if n.UserID != "user-2" || n.Type != TypeTaskAssigned {
			t.Errorf("persisted %s/%s, want user-2/%s", n.UserID, n.Type, TypeTaskAssigned)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was never routed after the enqueue failure")
	}
}

func TestHandler_DispatchRespondsBeforeFanOut(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	store := &MockWriter{CreateOrRefreshFunc: func(ctx context.Context, n *Notification) error {
		<-release
		close(done)
		return nil
	}}
	r := dispatchRouter(store, nil)

	req := httptest.NewRequest("POST", "/internal/v1/dispatch", strings.NewReader(dispatchBody))
	w := httptest.NewRecorder()
	// A synchronous fan-out would deadlock here on the parked store.
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", w.Code, w.Body.String())
	}
	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was never routed to the store")
	}
}
