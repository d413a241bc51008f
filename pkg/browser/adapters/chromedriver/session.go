package chromedriver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
)

// Session manages one WebDriver session.
type Session struct {
	id     string // caller-chosen identity (e.g. profile_0)
	wireID string // WebDriver session id

	client           *client
	operationTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

func (s *Session) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

func (s *Session) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.operationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.operationTimeout)
}

func (s *Session) path(suffix string) string {
	return "/session/" + s.wireID + suffix
}

// Navigate loads a URL.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := s.withOperationTimeout(ctx)
	defer cancel()
	if err := s.client.do(ctx, http.MethodPost, s.path("/url"), map[string]any{"url": rawURL}, nil); err != nil {
		return browser.WrapDriverError("navigate", "navigation failed", err)
	}
	return nil
}

// CurrentURL returns the page URL.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	ctx, cancel := s.withOperationTimeout(ctx)
	defer cancel()
	var current string
	if err := s.client.do(ctx, http.MethodGet, s.path("/url"), nil, &current); err != nil {
		return "", browser.WrapDriverError("current_url", "read url", err)
	}
	return current, nil
}

type elementRef map[string]string

func (e elementRef) id() string {
	return e[w3cElementKey]
}

// Find locates the first element matching the selector. A comma-separated
// CSS selector list is tried as written; XPath selectors pass through.
func (s *Session) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withOperationTimeout(ctx)
	defer cancel()

	var ref elementRef
	body := map[string]any{"using": string(sel.By), "value": sel.Value}
	if err := s.client.do(ctx, http.MethodPost, s.path("/element"), body, &ref); err != nil {
		return nil, err
	}
	if ref.id() == "" {
		return nil, browser.ErrNoSuchElement
	}
	return &element{session: s, elementID: ref.id()}, nil
}

// FindAll locates every element matching the selector.
func (s *Session) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withOperationTimeout(ctx)
	defer cancel()

	var refs []elementRef
	body := map[string]any{"using": string(sel.By), "value": sel.Value}
	if err := s.client.do(ctx, http.MethodPost, s.path("/elements"), body, &refs); err != nil {
		return nil, err
	}
	elements := make([]browser.Element, 0, len(refs))
	for _, ref := range refs {
		if ref.id() == "" {
			continue
		}
		elements = append(elements, &element{session: s, elementID: ref.id()})
	}
	return elements, nil
}

// Close deletes the WebDriver session. The chromedriver process stays up for
// the runtime's other sessions.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.do(ctx, http.MethodDelete, "/session/"+s.wireID, nil, nil); err != nil {
		return browser.WrapDriverError("close", "delete session", err)
	}
	return nil
}

// element implements browser.Element over the WebDriver element endpoints.
type element struct {
	session   *Session
	elementID string
}

func (e *element) path(suffix string) string {
	return e.session.path("/element/" + e.elementID + suffix)
}

func (e *element) Click(ctx context.Context) error {
	if err := e.session.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := e.session.withOperationTimeout(ctx)
	defer cancel()
	return e.session.client.do(ctx, http.MethodPost, e.path("/click"), nil, nil)
}

func (e *element) Clear(ctx context.Context) error {
	if err := e.session.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := e.session.withOperationTimeout(ctx)
	defer cancel()
	return e.session.client.do(ctx, http.MethodPost, e.path("/clear"), nil, nil)
}

func (e *element) Type(ctx context.Context, text string) error {
	if err := e.session.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := e.session.withOperationTimeout(ctx)
	defer cancel()
	return e.session.client.do(ctx, http.MethodPost, e.path("/value"), map[string]any{"text": text}, nil)
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if err := e.session.ensureOpen(); err != nil {
		return "", err
	}
	ctx, cancel := e.session.withOperationTimeout(ctx)
	defer cancel()
	var value *string
	if err := e.session.client.do(ctx, http.MethodGet, e.path("/attribute/"+url.PathEscape(name)), nil, &value); err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

// Upload sends a local file path to a file input. WebDriver models file
// uploads as typing the absolute path into the input element.
func (e *element) Upload(ctx context.Context, path string) error {
	return e.Type(ctx, strings.TrimSpace(path))
}
