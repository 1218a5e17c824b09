package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/footprint"
)

func TestLocalBusDeliversToForwarders(t *testing.T) {
	bus := NewLocalBus()
	var got []Change
	require.NoError(t, bus.StartForwarder(context.Background(), func(c Change) { got = append(got, c) }))

	require.NoError(t, bus.Publish(context.Background(), Change{OwnerID: "alice"}))
	require.Len(t, got, 1)
	require.Equal(t, "alice", got[0].OwnerID)

	var second int
	require.NoError(t, bus.StartForwarder(context.Background(), func(Change) { second++ }))
	require.NoError(t, bus.Publish(context.Background(), Change{OwnerID: "bob"}))
	require.Len(t, got, 2)
	require.Equal(t, 1, second)

	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(context.Background(), Change{OwnerID: "alice"}), ErrBusClosed)
}

type failingBus struct{ LocalBus }

func (*failingBus) Publish(context.Context, Change) error { return errors.New("down") }

func TestNotifierSwallowsPublishErrors(t *testing.T) {
	n := NewNotifier(&failingBus{}, zerolog.Nop())
	require.NotPanics(t, func() { n.FootprintChanged(context.Background(), "alice") })

	bus := NewLocalBus()
	var owner string
	require.NoError(t, bus.StartForwarder(context.Background(), func(c Change) { owner = c.OwnerID }))
	NewNotifier(bus, zerolog.Nop()).FootprintChanged(context.Background(), "bob")
	require.Equal(t, "bob", owner)
}

type fakePublisher struct {
	mu       sync.Mutex
	clients  bool
	payloads [][]byte
}

func (p *fakePublisher) HasClients(string) bool { return p.clients }

func (p *fakePublisher) Publish(_ string, payload []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return 1
}

type countingSource struct {
	calls atomic.Int32
	block chan struct{}
	err   error
}

func (s *countingSource) Footprint(_ context.Context, ownerID string) (*domain.FootprintReport, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return domain.BuildReport(ownerID, nil, time.Unix(0, 0).UTC()), nil
}

func TestRecomputerSkipsOwnersWithoutClients(t *testing.T) {
	source := &countingSource{}
	r := NewRecomputer(source, &fakePublisher{}, zerolog.Nop())
	r.OnChange(Change{OwnerID: "alice"})
	r.Wait()
	require.Zero(t, source.calls.Load())
}

func TestRecomputerPushesReport(t *testing.T) {
	source := &countingSource{}
	pub := &fakePublisher{clients: true}
	r := NewRecomputer(source, pub, zerolog.Nop())

	r.OnChange(Change{OwnerID: "alice"})
	r.Wait()

	require.Len(t, pub.payloads, 1)
	var push struct {
		Type      string `json:"type"`
		Footprint struct {
			OwnerID string            `json:"owner_id"`
			Summary footprint.Summary `json:"summary"`
		} `json:"footprint"`
	}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &push))
	require.Equal(t, "footprint", push.Type)
	require.Equal(t, "alice", push.Footprint.OwnerID)
	require.Zero(t, push.Footprint.Summary.TotalMass)
}

func TestRecomputerCoalescesBurst(t *testing.T) {
	source := &countingSource{block: make(chan struct{})}
	pub := &fakePublisher{clients: true}
	r := NewRecomputer(source, pub, zerolog.Nop())

	r.Trigger("alice")
	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	for i := 0; i < 5; i++ {
		r.Trigger("alice")
	}
	close(source.block)
	r.Wait()

	require.Equal(t, int32(2), source.calls.Load())
	require.Len(t, pub.payloads, 2)
}

func TestRecomputerSurvivesSourceErrors(t *testing.T) {
	source := &countingSource{err: errors.New("db down")}
	pub := &fakePublisher{clients: true}
	r := NewRecomputer(source, pub, zerolog.Nop())
	r.Trigger("alice")
	r.Wait()
	require.Empty(t, pub.payloads)
}

func TestHubServesAuthenticatedClients(t *testing.T) {
	hub := NewHub(zerolog.Nop(), WithAllowedOrigin("*"))
	joined := make(chan string, 1)
	hub.SetJoinHook(func(owner string) { joined <- owner })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner != "" {
			r = r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{Subject: owner}))
		}
		hub.ServeWS(w, r)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?owner=alice", nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case owner := <-joined:
		require.Equal(t, "alice", owner)
	case <-time.After(2 * time.Second):
		t.Fatal("join hook not called")
	}
	require.True(t, hub.HasClients("alice"))
	require.False(t, hub.HasClients("bob"))
	require.Equal(t, 1, hub.Count())

	require.Equal(t, 1, hub.Publish("alice", []byte(`{"type":"footprint"}`)))
	require.Zero(t, hub.Publish("bob", []byte(`{}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"footprint"}`, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := hub.register("alice")
	for i := 0; i < sendBuffer; i++ {
		require.Equal(t, 1, hub.Publish("alice", []byte("x")))
	}
	require.Zero(t, hub.Publish("alice", []byte("overflow")))
	require.False(t, hub.HasClients("alice"))

	drained := 0
	for range c.send {
		drained++
	}
	require.Equal(t, sendBuffer, drained)
}
