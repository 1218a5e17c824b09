//go:build integration

package live

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisBusRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	bus, err := NewRedisBus(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "test:footprint", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	received := make(chan Change, 1)
	require.NoError(t, bus.StartForwarder(fwdCtx, func(c Change) { received <- c }))

	require.NoError(t, bus.Publish(ctx, Change{OwnerID: "alice", At: time.Now().UTC()}))

	select {
	case c := <-received:
		require.Equal(t, "alice", c.OwnerID)
	case <-time.After(5 * time.Second):
		t.Fatal("change not forwarded")
	}
}
