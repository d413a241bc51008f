package pool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/theanhybdz2k4/new-sora/pkg/bus"
)

// Bridge mirrors a run onto a message bus. Events fan out under
// "sora.pool.<runID>.*" so external observers can follow progress, and a
// request on the control subject stops the run remotely.
type Bridge struct {
	bus     bus.MessageBus
	manager *Manager
	sub     bus.Subscription
}

// NewBridge attaches a manager's run to a bus. Call Start before the run and
// Forward for each event drained from Events().
func NewBridge(b bus.MessageBus, m *Manager) *Bridge {
	return &Bridge{bus: b, manager: m}
}

// ControlSubject returns the request subject that stops the given run.
func ControlSubject(runID string) string {
	return fmt.Sprintf("sora.pool.%s.control.stop", runID)
}

// Start subscribes the stop handler. A request on the control subject is
// acknowledged with "ok"; the stop itself is asynchronous, matching the
// non-blocking Stop contract.
func (br *Bridge) Start(ctx context.Context) error {
	sub, err := br.bus.Subscribe(ctx, ControlSubject(br.manager.RunID()), func(msg *bus.Message) []byte {
		br.manager.Stop()
		return []byte("ok")
	})
	if err != nil {
		return fmt.Errorf("subscribe control: %w", err)
	}
	br.sub = sub
	return nil
}

// Forward publishes one pool event. Publish failures are ignored: the bus is
// an observation surface, never a dependency of the run itself.
func (br *Bridge) Forward(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = br.bus.Publish(ctx, br.subject(ev.Kind), data)
}

func (br *Bridge) subject(kind EventKind) string {
	prefix := "sora.pool." + br.manager.RunID()
	switch kind {
	case EventTaskStarted:
		return prefix + ".task.started"
	case EventTaskCompleted:
		return prefix + ".task.completed"
	case EventLoginRequired:
		return prefix + ".login"
	case EventPoolFinished:
		return prefix + ".finished"
	default:
		return prefix + ".log"
	}
}

// Close tears down the control subscription.
func (br *Bridge) Close() error {
	if br.sub != nil {
		return br.sub.Unsubscribe()
	}
	return nil
}
