// Package browser defines the ports for driving real browser sessions.
// Adapters (pkg/browser/adapters) implement these against a concrete
// automation backend; everything above this package is backend-agnostic.
package browser

import (
	"context"
	"errors"
	"time"
)

// Runtime manages browser sessions.
type Runtime interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
	Close() error
}

// Session is the port implemented by browser runtime adapters.
// A Session is owned by exactly one goroutine and is not safe for
// concurrent use.
type Session interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Find(ctx context.Context, sel Selector) (Element, error)
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	Close() error
}

// Element is a handle to a located page element.
type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Attribute(ctx context.Context, name string) (string, error)
	// Upload sends a local file path to a file input element.
	Upload(ctx context.Context, path string) error
}

// WaitFor polls Find until the element appears, the timeout elapses, or the
// context is cancelled. Poll interval is fixed at 500ms.
func WaitFor(ctx context.Context, s Session, sel Selector, timeout time.Duration) (Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := s.Find(ctx, sel)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, ErrNoSuchElement) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrOperationTimeout
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
