package rover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rovernav/reactive"
)

func testServer(handler http.HandlerFunc) (*httptest.Server, *Client) {
	srv := httptest.NewServer(handler)
	client := NewClient(srv.URL, 5*time.Second)
	client.SetRetry(0, time.Millisecond)
	client.SetSessionID("sess-1")
	return srv, client
}

func TestStartSession(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/start" || r.Method != http.MethodPost {
			t.Errorf("%s %s, want POST /session/start", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"session_id":"abc-123"}`))
	})
	defer srv.Close()
	client.SetSessionID("")

	id, err := client.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if id != "abc-123" || client.SessionID() != "abc-123" {
		t.Errorf("session = %q / %q", id, client.SessionID())
	}
}

func TestStartSession_MissingID(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer srv.Close()
	if _, err := client.StartSession(context.Background()); err == nil {
		t.Fatal("expected error when session_id is missing")
	}
}

func TestMove(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rover/move" || r.Method != http.MethodPost {
			t.Errorf("%s %s, want POST /rover/move", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("session_id") != "sess-1" || q.Get("direction") != "left" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"ok":true}`))
	})
	defer srv.Close()
	if err := client.Move(context.Background(), reactive.Left); err != nil {
		t.Fatalf("Move: %v", err)
	}
}

func TestStopAndCharge(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()
	if err := client.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := client.Charge(context.Background()); err != nil {
		t.Fatalf("Charge: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"/rover/stop", "/rover/charge"}, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestNoSession(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	if err := client.Move(context.Background(), reactive.Forward); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if _, err := client.GetStatus(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.code)
		})
		err := client.Move(context.Background(), reactive.Forward)
		srv.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("%d: err = %v, want *APIError", tt.code, err)
		}
		if apiErr.StatusCode != tt.code || apiErr.Transient() != tt.transient {
			t.Errorf("%d: status %d transient %v", tt.code, apiErr.StatusCode, apiErr.Transient())
		}
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second)
	client.SetSessionID("s")
	err := client.Stop(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Transient() {
		t.Errorf("err = %v, want transient APIError", err)
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"battery": 55}`))
	})
	defer srv.Close()
	client.SetRetry(2, time.Millisecond)

	st, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.Battery != 55 || calls.Load() != 3 {
		t.Errorf("battery %v after %d calls", st.Battery, calls.Load())
	}
}

func TestGetDoesNotRetryFatal(t *testing.T) {
	var calls atomic.Int32
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad session", http.StatusBadRequest)
	})
	defer srv.Close()
	client.SetRetry(3, time.Millisecond)

	if _, err := client.GetSensorData(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream", http.StatusBadGateway)
	})
	defer srv.Close()
	client.SetRetry(3, time.Millisecond)

	client.Move(context.Background(), reactive.Forward)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGetStatus(t *testing.T) {
	srv, client := testServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rover/status" || r.URL.Query().Get("session_id") != "sess-1" {
			t.Errorf("request = %s", r.URL)
		}
		w.Write([]byte(`{"position": [3, 4.6], "battery": {"level": 18}, "status": "Battery Low"}`))
	})
	defer srv.Close()

	st, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !st.HasPosition || st.Position != (Position{X: 3, Y: 4.6}) {
		t.Errorf("position = %+v", st.Position)
	}
	if st.Position.Cell().Y != 5 {
		t.Errorf("cell = %s", st.Position.Cell())
	}
	if !st.BatteryKnown || st.Battery != 18 || !st.LowBattery {
		t.Errorf("status = %+v", st)
	}
}
