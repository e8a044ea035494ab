// Package playground holds the warm-up demos the demo runs before serving: printing, atomics,
// worker threads and a bare TCP fetch.
package playground

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/logging"
)

// Print logs a greeting and a small collection.
func Print(logger logging.Logger) []string {
	logger.Info("Hello, world from Go!")

	children := []string{}
	children = append(children, "foo", "bar")
	logger.Infow("More complex print", "children", children)
	return children
}

// Atomics compare-and-swaps 0 to 1 then swaps in 2, returning the value seen by each step.
func Atomics(logger logging.Logger) (uint64, uint64) {
	a := atomic.NewUint64(0)
	var v1 uint64
	if !a.CompareAndSwap(0, 1) {
		v1 = a.Load()
	}
	v2 := a.Swap(2)
	logger.Infow("Result", "first", v1, "second", v2)
	return v1, v2
}

// CriticalSection is a lock handed to every worker that needs exclusive access to shared state.
type CriticalSection struct {
	mu sync.Mutex
}

// Do runs f while holding the lock.
func (cs *CriticalSection) Do(f func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	f()
}

// Worker is the per-goroutine context for Threads. Scratch is allocated on first use and never
// shared.
type Worker struct {
	ID int

	scratch []byte
}

// Scratch returns the worker's buffer, allocating it the first time.
func (w *Worker) Scratch() []byte {
	if w.scratch == nil {
		w.scratch = make([]byte, 0, 64)
	}
	return w.scratch
}

// Threads starts n workers and waits for them. Each records its id in the shared list through the
// critical section; the returned ids are in completion order.
func Threads(ctx context.Context, n int, logger logging.Logger) ([]int, error) {
	logger.Infow("main goroutine", "threads", n)

	var (
		cs   CriticalSection
		seen []int
	)
	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		w := &Worker{ID: i}
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf := fmt.Appendf(w.Scratch(), "worker %d", w.ID)
			logger.Debugw("This is thread number", "id", w.ID, "scratch", string(buf))
			cs.Do(func() {
				seen = append(seen, w.ID)
			})
			return nil
		})
	}

	logger.Info("About to join the threads")
	if err := group.Wait(); err != nil {
		return nil, err
	}
	logger.Info("Joins were successful.")
	return seen, nil
}

// TCPRequest is written to the target by TCP.
const TCPRequest = "GET / HTTP/1.0\n\n"

// TCP opens a connection to target, sends TCPRequest and reads the reply until the peer closes.
func TCP(ctx context.Context, target string, logger logging.Logger) (string, error) {
	logger.Infow("About to open a TCP connection", "target", target)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return "", errors.Wrapf(err, "connecting to %s", target)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return "", err
		}
	}

	if _, err := io.WriteString(conn, TCPRequest); err != nil {
		return "", errors.Wrap(err, "writing request")
	}
	var reply strings.Builder
	if _, err := io.Copy(&reply, conn); err != nil {
		return "", errors.Wrap(err, "reading reply")
	}
	logger.Infow("Since it returned something, all is OK", "target", target, "size", units.HumanSize(float64(reply.Len())))
	return reply.String(), nil
}

// tcpTimeout bounds the TCP demo so an unreachable target does not hold up startup.
const tcpTimeout = 10 * time.Second

// Run runs every demo in order. A TCP failure is logged, not returned.
func Run(ctx context.Context, cfg config.PlaygroundConfig, logger logging.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	Print(logger)
	Atomics(logger)
	if _, err := Threads(ctx, cfg.Threads, logger); err != nil {
		return err
	}
	if cfg.TCPTarget == "" {
		return nil
	}

	tcpCtx, cancel := context.WithTimeout(ctx, tcpTimeout)
	defer cancel()
	if _, err := TCP(tcpCtx, cfg.TCPTarget, logger); err != nil {
		logger.Warnw("TCP demo failed", "error", err)
	}
	return nil
}
