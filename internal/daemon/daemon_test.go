package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/config"
	"github.com/matheus3301/ringcore/internal/lock"
	"github.com/matheus3301/ringcore/internal/outbox"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/status"
	"github.com/matheus3301/ringcore/internal/store"
	intsync "github.com/matheus3301/ringcore/internal/sync"
	"github.com/matheus3301/ringcore/internal/tui/client"
)

type stack struct {
	db       *store.DB
	bus      *bus.Bus
	host     *status.Host
	link     *Link
	accounts *account.Set
	calls    *call.Engine
	engine   *intsync.Engine
	journal  *intsync.Journal
	sender   *outbox.Sender
}

func newStack(t *testing.T, dir string) *stack {
	t.Helper()
	db, err := store.Open(filepath.Join(dir, "ringcore.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	s := &stack{db: db, bus: bus.New()}
	s.host = provideHost(s.bus)
	s.link = NewLink(filepath.Join(dir, "daemon.sock"), s.host, logger)
	s.calls = provideCallEngine(s.bus, logger)
	s.accounts = provideAccounts()
	s.journal = provideJournal(db, s.bus, logger)
	cfg := config.Default()
	s.engine = provideSyncEngine(s.link, s.accounts, s.calls, s.bus, s.host, s.journal, cfg, logger)
	s.sender = provideSender(db, s.link, s.accounts, s.bus, logger)
	return s
}

func TestDaemonLifecycle(t *testing.T) {
	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "ringcore-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	s := newStack(t, tmpDir)
	p := Params{Profile: "test", SocketPath: filepath.Join(tmpDir, "d.sock")}
	srv, err := NewServer(
		p,
		zap.NewNop(),
		provideAccountService(p, s.host, s.accounts, s.db),
		provideConversationService(p, s.accounts, s.sender, s.journal, s.bus),
		provideCallService(s.link, s.calls, s.engine),
	)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	info, err := os.Stat(p.SocketPath)
	if err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("socket perm = %v, want 0600", info.Mode().Perm())
	}

	cli, err := client.New(p.SocketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cli.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := cli.Account(ctx, "GetStatus", nil)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if got := client.String(resp, "profile"); got != "test" {
		t.Errorf("profile = %q, want %q", got, "test")
	}
	if got := client.String(resp, "status"); got != string(status.Booting) {
		t.Errorf("status = %q, want %q", got, status.Booting)
	}

	resp, err = cli.Conversation(ctx, "ListConversations", client.Args{"account": "missing"})
	if err == nil {
		t.Fatalf("ListConversations on unknown account = %v, want error", resp)
	}

	// No daemon is attached, so there are no calls to report.
	resp, err = cli.Calls(ctx, "ListCalls", nil)
	if err != nil {
		t.Fatalf("ListCalls error = %v", err)
	}
	if n := len(client.List(resp, "calls")); n != 0 {
		t.Errorf("expected 0 calls, got %d", n)
	}
}

func TestServerRemovesStaleSocket(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "ringcore-stale-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0600); err != nil {
		t.Fatal(err)
	}

	s := newStack(t, tmpDir)
	p := Params{Profile: "stale", SocketPath: socketPath}
	srv, err := NewServer(
		p,
		zap.NewNop(),
		provideAccountService(p, s.host, s.accounts, s.db),
		provideConversationService(p, s.accounts, s.sender, s.journal, s.bus),
		provideCallService(s.link, s.calls, s.engine),
	)
	if err != nil {
		t.Fatalf("NewServer() over stale socket failed: %v", err)
	}
	srv.Stop(context.Background())

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

// wireFrame and wireReply mirror the bridge framing so the test can play
// the daemon.
type wireFrame struct {
	Kind string          `cbor:"k"`
	Seq  uint64          `cbor:"s,omitempty"`
	Body cbor.RawMessage `cbor:"b,omitempty"`
}

type wireReply struct {
	OK bool `cbor:"ok"`
}

// fakeDaemon accepts every command with an empty result, so the engine
// sees a daemon without accounts.
func fakeDaemon(conn net.Conn) {
	dec := ring.NewDecoder(conn)
	enc := ring.NewEncoder(conn)
	for {
		var f wireFrame
		if err := dec.Decode(&f); err != nil {
			return
		}
		body, err := ring.Marshal(wireReply{OK: true})
		if err != nil {
			return
		}
		if err := enc.Encode(wireFrame{Kind: "reply", Seq: f.Seq, Body: body}); err != nil {
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLinkConnectsAndRecovers(t *testing.T) {
	s := newStack(t, t.TempDir())

	var dials atomic.Int32
	daemonSide := make(chan net.Conn, 4)
	s.link.dial = func(_ context.Context, _ string, logger *zap.Logger) (*ring.Bridge, error) {
		dials.Add(1)
		local, remote := net.Pipe()
		go fakeDaemon(remote)
		daemonSide <- remote
		return ring.NewBridge(local, logger), nil
	}

	s.link.Start(context.Background(), s.engine)
	defer s.link.Stop()

	waitFor(t, "ready", func() bool { return s.host.Current() == status.Ready })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.link.Accounts(ctx); err != nil {
		t.Fatalf("Accounts over link error = %v", err)
	}

	// Dropping the daemon side must trigger a redial.
	first := <-daemonSide
	_ = first.Close()
	waitFor(t, "redial", func() bool { return dials.Load() >= 2 })
	waitFor(t, "ready again", func() bool { return s.host.Current() == status.Ready })
}

func TestLinkBacksOffWhileUnreachable(t *testing.T) {
	s := newStack(t, t.TempDir())

	var dials atomic.Int32
	s.link.dial = func(context.Context, string, *zap.Logger) (*ring.Bridge, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}

	s.link.Start(context.Background(), s.engine)
	waitFor(t, "reconnecting", func() bool { return s.host.Current() == status.Reconnecting })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.link.HangUp(ctx, "c1"); !errors.Is(err, ring.ErrClosed) {
		t.Errorf("HangUp while disconnected = %v, want ring.ErrClosed", err)
	}
	if _, err := s.link.PlaceCall(ctx, "acc", "jami:peer"); !errors.Is(err, ring.ErrClosed) {
		t.Errorf("PlaceCall while disconnected = %v, want ring.ErrClosed", err)
	}

	// Stop interrupts the backoff sleep.
	stopped := make(chan struct{})
	go func() {
		s.link.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt backoff")
	}
	if n := dials.Load(); n != 1 {
		t.Errorf("dials = %d, want 1 within the first backoff", n)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{12, 32 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestMoveToLeavesErrorThroughBooting(t *testing.T) {
	host := status.NewHost(nil)
	l := NewLink("unused", host, zap.NewNop())

	l.moveTo(status.Connecting)
	if err := host.Transition(status.Error); err != nil {
		t.Fatal(err)
	}
	l.moveTo(status.Connecting)
	if got := host.Current(); got != status.Connecting {
		t.Errorf("state = %v, want %v", got, status.Connecting)
	}
	if err := host.Transition(status.Error); err != nil {
		t.Fatal(err)
	}
	l.moveTo(status.Reconnecting)
	if got := host.Current(); got != status.Booting {
		t.Errorf("state = %v, want %v", got, status.Booting)
	}
}
