package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/api"
	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/config"
	"github.com/jyoon-dev/ssak3/internal/identity"
	"github.com/jyoon-dev/ssak3/internal/lock"
	"github.com/jyoon-dev/ssak3/internal/market"
	"github.com/jyoon-dev/ssak3/internal/outbox"
	"github.com/jyoon-dev/ssak3/internal/session"
	"github.com/jyoon-dev/ssak3/internal/status"
	"github.com/jyoon-dev/ssak3/internal/store"
	intsync "github.com/jyoon-dev/ssak3/internal/sync"
	"github.com/jyoon-dev/ssak3/internal/tui/client"
	"github.com/jyoon-dev/ssak3/internal/unread"
)

// testDaemon assembles the full component graph by hand on a temp
// directory and serves the control API on a throwaway socket.
func testDaemon(t *testing.T) (*Server, *status.Machine, string) {
	t.Helper()

	// Use a short path to avoid the 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "ssak3-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	socketPath := filepath.Join(tmpDir, "d.sock")

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = lk.Release() })

	db, err := store.Open(filepath.Join(tmpDir, "ssak3.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	b := bus.New()
	machine := status.NewMachine(b)
	cfg := &config.Config{APIBaseURL: "http://127.0.0.1:0"}
	creds := session.NewCredStore(filepath.Join(tmpDir, "creds.toml"))
	resolver := identity.NewResolver(creds, logger)
	mc := market.NewClient(cfg.APIBaseURL, creds, b, logger)
	u := unread.NewState(b)
	poller := intsync.NewRoomPoller(mc, resolver, b, u, logger, time.Hour, 0)
	feeds := intsync.NewFeedManager(mc, resolver, db, b, logger, time.Hour)
	sender := outbox.NewSender(db, mc, feeds, resolver, b, logger)

	handler := api.NewHandler("test", cfg, machine, creds, resolver, mc, poller, feeds, sender, u, b, filepath.Join(tmpDir, "media"), logger)

	srv, err := NewServer(Params{SessionName: "test", SocketPath: socketPath}, logger, handler)
	if err != nil {
		t.Fatal(err)
	}

	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	// Wait for the socket to accept requests.
	c := client.New(socketPath)
	defer func() { _ = c.Close() }()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := c.Status(context.Background())
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("control server did not become ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	return srv, machine, socketPath
}

func TestDaemonLifecycle(t *testing.T) {
	_, _, socketPath := testDaemon(t)

	c := client.New(socketPath)
	defer func() { _ = c.Close() }()

	resp, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status error = %v", err)
	}
	if resp.Session != "test" {
		t.Errorf("session = %q, want %q", resp.Session, "test")
	}
	if resp.State != string(status.Booting) {
		t.Errorf("state = %q, want BOOTING", resp.State)
	}
	if resp.LoggedIn {
		t.Error("expected logged_in = false with no cached credentials")
	}

	rooms, err := c.Rooms(context.Background())
	if err != nil {
		t.Fatalf("Rooms error = %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("expected 0 rooms before any poll, got %d", len(rooms))
	}

	// Sends must refuse before the room's feed has bootstrapped.
	if _, err := c.SendText(context.Background(), 42, "hello"); err == nil {
		t.Error("expected send to an unopened room to fail")
	}
}

// TestStatusReflectsAuthRequired verifies the control API surfaces the
// state machine: an unauthenticated daemon must report AUTH_REQUIRED, not
// stay on BOOTING.
func TestStatusReflectsAuthRequired(t *testing.T) {
	_, machine, socketPath := testDaemon(t)

	if err := machine.Transition(status.AuthRequired); err != nil {
		t.Fatal(err)
	}

	c := client.New(socketPath)
	defer func() { _ = c.Close() }()

	resp, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.State != string(status.AuthRequired) {
		t.Errorf("state = %q, want AUTH_REQUIRED", resp.State)
	}
}

// TestStatusReflectsPostAuthTransition verifies the status endpoint tracks
// the resume path BOOTING→RESOLVING→READY.
func TestStatusReflectsPostAuthTransition(t *testing.T) {
	_, machine, socketPath := testDaemon(t)

	_ = machine.Transition(status.Resolving)
	_ = machine.Transition(status.Ready)

	c := client.New(socketPath)
	defer func() { _ = c.Close() }()

	resp, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.State != string(status.Ready) {
		t.Errorf("state = %q, want READY", resp.State)
	}

	// Degraded and back.
	_ = machine.Transition(status.Degraded)
	resp, err = c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.State != string(status.Degraded) {
		t.Errorf("state = %q, want DEGRADED", resp.State)
	}
}

// TestServerSocketLifecycle verifies the socket file is created with
// owner-only permissions and removed on shutdown.
func TestServerSocketLifecycle(t *testing.T) {
	srv, _, socketPath := testDaemon(t)

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket perm = %o, want 0600", perm)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.Stop(ctx)

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still exists after Stop")
	}
}
