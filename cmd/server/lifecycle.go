package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// stopper is one component to stop at shutdown. A nil fn is skipped.
type stopper struct {
	name string
	fn   func(context.Context) error
}

// drain waits d for the load balancer to notice the closed readiness gate.
// A value on force ends the wait early.
func drain(L log.Logger, d time.Duration, force <-chan os.Signal) {
	ctx := context.Background()
	L.Info(ctx, "draining", "drain_seconds", d.Seconds())
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		L.Info(ctx, "drain period complete")
	case <-force:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

// stopAll stops each component in order. Each gets an equal share of budget
// and none may run past the overall deadline.
func stopAll(L log.Logger, budget time.Duration, stoppers []stopper) {
	if len(stoppers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	share := budget / time.Duration(len(stoppers))

	for _, s := range stoppers {
		if s.fn == nil {
			continue
		}
		cctx, ccancel := context.WithTimeout(ctx, share)
		if err := s.fn(cctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		ccancel()
	}
}

// notifySystemd sends READY=1 to the socket systemd passes to type=notify
// units in NOTIFY_SOCKET.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // addr comes from systemd; unixgram dial has no context variant
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
