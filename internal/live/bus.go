// Package live pushes recomputed footprints to connected websocket clients.
package live

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Change announces that an owner's activity set changed.
type Change struct {
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
}

// Bus fans change notifications out to every API replica.
type Bus interface {
	Publish(ctx context.Context, change Change) error
	StartForwarder(ctx context.Context, onChange func(Change)) error
	Close() error
}

// LocalBus delivers changes to forwarders registered in this process.
type LocalBus struct {
	mu        sync.RWMutex
	listeners []func(Change)
	closed    bool
}

// NewLocalBus constructs an in-process Bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("bus closed")

// Publish implements Bus. Listeners run synchronously on the caller's goroutine.
func (b *LocalBus) Publish(_ context.Context, change Change) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	listeners := slices.Clone(b.listeners)
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
	return nil
}

// StartForwarder implements Bus.
func (b *LocalBus) StartForwarder(_ context.Context, onChange func(Change)) error {
	if onChange == nil {
		return errors.New("onChange callback required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.listeners = append(b.listeners, onChange)
	return nil
}

// Close implements Bus.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = nil
	return nil
}

// Notifier publishes domain change notifications onto a Bus.
type Notifier struct {
	bus    Bus
	logger zerolog.Logger
	now    func() time.Time
}

// NewNotifier constructs a Notifier.
func NewNotifier(bus Bus, logger zerolog.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger, now: time.Now}
}

// FootprintChanged publishes the change. Failures are logged and never surface
// to the caller; the activity is already stored.
func (n *Notifier) FootprintChanged(ctx context.Context, ownerID string) {
	change := Change{OwnerID: ownerID, At: n.now().UTC()}
	if err := n.bus.Publish(context.WithoutCancel(ctx), change); err != nil {
		n.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("footprint change not published")
	}
}
