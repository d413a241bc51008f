package chromedriver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
)

// fakeDriver is a minimal WebDriver endpoint for exercising the client.
type fakeDriver struct {
	mu       sync.Mutex
	requests []string
	missing  bool // report "no such element" on element lookups
}

func (f *fakeDriver) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeValue(w, http.StatusOK, map[string]any{"ready": true})
	})
	mux.HandleFunc("/session/abc/url", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.Method + " /url")
		if r.Method == http.MethodGet {
			writeValue(w, http.StatusOK, "https://sora.com/library")
			return
		}
		writeValue(w, http.StatusOK, nil)
	})
	mux.HandleFunc("/session/abc/element", func(w http.ResponseWriter, r *http.Request) {
		f.record("POST /element")
		f.mu.Lock()
		missing := f.missing
		f.mu.Unlock()
		if missing {
			writeValue(w, http.StatusNotFound, map[string]any{
				"error":   "no such element",
				"message": "nothing matched",
			})
			return
		}
		writeValue(w, http.StatusOK, map[string]string{w3cElementKey: "el-1"})
	})
	mux.HandleFunc("/session/abc/element/el-1/click", func(w http.ResponseWriter, r *http.Request) {
		f.record("POST /click")
		writeValue(w, http.StatusOK, nil)
	})
	mux.HandleFunc("/session/abc/element/el-1/value", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.record("POST /value " + body.Text)
		writeValue(w, http.StatusOK, nil)
	})
	mux.HandleFunc("/session/abc/element/el-1/attribute/src", func(w http.ResponseWriter, r *http.Request) {
		f.record("GET /attribute/src")
		writeValue(w, http.StatusOK, "https://cdn.example/video.mp4")
	})
	mux.HandleFunc("/session/abc", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.Method + " /session/abc")
		writeValue(w, http.StatusOK, nil)
	})
	return mux
}

func (f *fakeDriver) record(s string) {
	f.mu.Lock()
	f.requests = append(f.requests, s)
	f.mu.Unlock()
}

func writeValue(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"value": value})
}

func newTestSession(t *testing.T, f *fakeDriver) *Session {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return &Session{
		id:               "profile_0",
		wireID:           "abc",
		client:           newClient(srv.URL),
		operationTimeout: 5 * time.Second,
	}
}

func TestSession_NavigateAndCurrentURL(t *testing.T) {
	f := &fakeDriver{}
	s := newTestSession(t, f)
	ctx := context.Background()

	if err := s.Navigate(ctx, "https://sora.com"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	got, err := s.CurrentURL(ctx)
	if err != nil {
		t.Fatalf("CurrentURL() error = %v", err)
	}
	if got != "https://sora.com/library" {
		t.Errorf("CurrentURL() = %q", got)
	}
}

func TestSession_FindClickTypeAttribute(t *testing.T) {
	f := &fakeDriver{}
	s := newTestSession(t, f)
	ctx := context.Background()

	el, err := s.Find(ctx, browser.CSS("video"))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if err := el.Click(ctx); err != nil {
		t.Errorf("Click() error = %v", err)
	}
	if err := el.Type(ctx, "a sunset"); err != nil {
		t.Errorf("Type() error = %v", err)
	}
	src, err := el.Attribute(ctx, "src")
	if err != nil {
		t.Fatalf("Attribute() error = %v", err)
	}
	if src != "https://cdn.example/video.mp4" {
		t.Errorf("Attribute(src) = %q", src)
	}
}

func TestSession_FindMapsNoSuchElement(t *testing.T) {
	f := &fakeDriver{missing: true}
	s := newTestSession(t, f)

	_, err := s.Find(context.Background(), browser.CSS("#nope"))
	if !errors.Is(err, browser.ErrNoSuchElement) {
		t.Errorf("Find() error = %v, want ErrNoSuchElement", err)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	f := &fakeDriver{}
	s := newTestSession(t, f)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.Navigate(context.Background(), "https://sora.com"); !errors.Is(err, browser.ErrSessionClosed) {
		t.Errorf("Navigate after Close = %v, want ErrSessionClosed", err)
	}
}

func TestWaitFor_TimesOutWhenElementNeverAppears(t *testing.T) {
	f := &fakeDriver{missing: true}
	s := newTestSession(t, f)

	start := time.Now()
	_, err := browser.WaitFor(context.Background(), s, browser.CSS("#nope"), 700*time.Millisecond)
	if !errors.Is(err, browser.ErrOperationTimeout) {
		t.Fatalf("WaitFor() error = %v, want ErrOperationTimeout", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("WaitFor took too long to give up")
	}
}
