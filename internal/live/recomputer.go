package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/observability"
)

// FootprintSource computes an owner's footprint from a fresh snapshot.
type FootprintSource interface {
	Footprint(ctx context.Context, ownerID string) (*domain.FootprintReport, error)
}

// Publisher delivers a payload to an owner's clients.
type Publisher interface {
	HasClients(ownerID string) bool
	Publish(ownerID string, payload []byte) int
}

// Push is the message written to websocket clients.
type Push struct {
	Type   string                  `json:"type"`
	Report *domain.FootprintReport `json:"footprint"`
}

// Recomputer re-aggregates an owner's footprint whenever a change arrives and
// pushes it to that owner's clients. Changes for the same owner that arrive
// while a recomputation is running collapse into one follow-up run.
type Recomputer struct {
	source    FootprintSource
	publisher Publisher
	logger    zerolog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	running map[string]bool
	dirty   map[string]bool
	wg      sync.WaitGroup
}

// NewRecomputer constructs a Recomputer.
func NewRecomputer(source FootprintSource, publisher Publisher, logger zerolog.Logger) *Recomputer {
	return &Recomputer{
		source:    source,
		publisher: publisher,
		logger:    logger,
		timeout:   5 * time.Second,
		running:   make(map[string]bool),
		dirty:     make(map[string]bool),
	}
}

// OnChange schedules a recomputation for the change's owner. It never blocks.
func (r *Recomputer) OnChange(change Change) {
	r.Trigger(change.OwnerID)
}

// Trigger schedules a recomputation for ownerID.
func (r *Recomputer) Trigger(ownerID string) {
	if ownerID == "" {
		return
	}
	if !r.publisher.HasClients(ownerID) {
		observability.RecordLivePush("skipped")
		return
	}

	r.mu.Lock()
	if r.running[ownerID] {
		r.dirty[ownerID] = true
		r.mu.Unlock()
		return
	}
	r.running[ownerID] = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.loop(ownerID)
}

func (r *Recomputer) loop(ownerID string) {
	defer r.wg.Done()
	for {
		r.recompute(ownerID)

		r.mu.Lock()
		if !r.dirty[ownerID] {
			delete(r.running, ownerID)
			r.mu.Unlock()
			return
		}
		delete(r.dirty, ownerID)
		r.mu.Unlock()
	}
}

func (r *Recomputer) recompute(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	report, err := r.source.Footprint(ctx, ownerID)
	if err != nil {
		observability.RecordLivePush("failed")
		r.logger.Error().Err(err).Str("owner_id", ownerID).Msg("footprint recomputation failed")
		return
	}

	payload, err := json.Marshal(Push{Type: "footprint", Report: report})
	if err != nil {
		observability.RecordLivePush("failed")
		r.logger.Error().Err(err).Str("owner_id", ownerID).Msg("footprint push encode failed")
		return
	}

	if r.publisher.Publish(ownerID, payload) == 0 {
		observability.RecordLivePush("skipped")
		return
	}
	observability.RecordLivePush("sent")
}

// Wait blocks until in-flight recomputations finish.
func (r *Recomputer) Wait() {
	r.wg.Wait()
}
