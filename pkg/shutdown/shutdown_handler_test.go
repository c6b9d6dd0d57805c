package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iotaledger/hive.go/daemon"
)

func TestSelfShutdownStopsDaemon(t *testing.T) {
	d := daemon.New()

	stopped := make(chan struct{})
	require.NoError(t, d.BackgroundWorker("test worker", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	}, PriorityDashboard))
	d.Start()

	handler := NewShutdownHandler(zaptest.NewLogger(t).Sugar(), d, time.Minute)
	handler.Run()

	handler.SelfShutdown("first")
	// only the first request is kept
	handler.SelfShutdown("second")

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker wasn't shut down")
	}
}

func TestNewShutdownHandlerDefaultWaitToKillTime(t *testing.T) {
	handler := NewShutdownHandler(zaptest.NewLogger(t).Sugar(), daemon.New(), 0)
	require.Equal(t, defaultWaitToKillTime, handler.waitToKillTime)
}
