package shutdown

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iotaledger/hive.go/daemon"
	"github.com/iotaledger/hive.go/logger"
)

const (
	// the default maximum amount of time to wait for background processes to terminate. After that the process is killed.
	defaultWaitToKillTime = 60 * time.Second
)

// ShutdownHandler waits until a shutdown signal was received or the node tried to shut down itself,
// and shuts down all processes gracefully.
type ShutdownHandler struct {
	log              *logger.Logger
	daemon           daemon.Daemon
	waitToKillTime   time.Duration
	gracefulStop     chan os.Signal
	nodeSelfShutdown chan string
}

// NewShutdownHandler creates a new shutdown handler.
// A waitToKillTime of zero uses the default.
func NewShutdownHandler(log *logger.Logger, daemon daemon.Daemon, waitToKillTime time.Duration) *ShutdownHandler {
	if waitToKillTime <= 0 {
		waitToKillTime = defaultWaitToKillTime
	}

	gs := &ShutdownHandler{
		log:              log,
		daemon:           daemon,
		waitToKillTime:   waitToKillTime,
		gracefulStop:     make(chan os.Signal, 1),
		nodeSelfShutdown: make(chan string, 1),
	}

	signal.Notify(gs.gracefulStop, syscall.SIGTERM, syscall.SIGINT)

	return gs
}

// SelfShutdown can be called in order to instruct the node to shut down cleanly without receiving any interrupt signals.
// Only the first call has an effect.
func (gs *ShutdownHandler) SelfShutdown(msg string) {
	select {
	case gs.nodeSelfShutdown <- msg:
	default:
	}
}

// Run starts the ShutdownHandler go routine.
func (gs *ShutdownHandler) Run() {

	go func() {
		select {
		case <-gs.gracefulStop:
			gs.log.Warnf("Received shutdown request - waiting (max %s) to finish processing ...", gs.waitToKillTime)
		case msg := <-gs.nodeSelfShutdown:
			gs.log.Warnf("Relay self-shutdown: %s; waiting (max %s) to finish processing ...", msg, gs.waitToKillTime)
		}

		go gs.reportPendingWorkers()

		gs.daemon.ShutdownAndWait()
	}()
}

// logs the still running background workers every second and kills the process if they don't finish in time.
func (gs *ShutdownHandler) reportPendingWorkers() {
	start := time.Now()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for now := range ticker.C {
		remaining := gs.waitToKillTime - now.Sub(start)
		if remaining <= 0 {
			gs.log.Fatal("Background processes did not terminate in time! Forcing shutdown ...")
		}

		processList := ""
		if runningBackgroundWorkers := gs.daemon.GetRunningBackgroundWorkers(); len(runningBackgroundWorkers) >= 1 {
			processList = "(" + strings.Join(runningBackgroundWorkers, ", ") + ") "
		}

		gs.log.Warnf("Received shutdown request - waiting (max %s) to finish processing %s...", remaining.Truncate(time.Second), processList)
	}
}
