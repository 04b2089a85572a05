// Package sync routes daemon events into the call engine and the
// accounts. Events of one account are applied in delivery order by a
// dedicated worker; different accounts proceed concurrently.
package sync

import (
	"context"
	"strings"
	gosync "sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/status"
)

const (
	workerQueue = 256
	loadTimeout = 30 * time.Second
)

// Restorer rebuilds persisted state into a freshly loaded account.
type Restorer interface {
	Restore(a *account.Account) error
}

// Options tunes the accounts created by the engine.
type Options struct {
	BackfillPage int
	BackfillRate int
}

// Engine applies daemon events to the engine state.
type Engine struct {
	cmds     ring.Commands
	accounts *account.Set
	calls    *call.Engine
	bus      *bus.Bus
	host     *status.Host
	restorer Restorer
	opts     Options
	logger   *zap.Logger

	mu      gosync.Mutex
	workers map[string]*worker
	stopped bool
	quit    chan struct{}
	wg      gosync.WaitGroup
}

// NewEngine creates a router. restorer may be nil.
func NewEngine(cmds ring.Commands, accounts *account.Set, calls *call.Engine, b *bus.Bus, host *status.Host, restorer Restorer, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cmds:     cmds,
		accounts: accounts,
		calls:    calls,
		bus:      b,
		host:     host,
		restorer: restorer,
		opts:     opts,
		logger:   logger.Named("sync"),
		workers:  make(map[string]*worker),
		quit:     make(chan struct{}),
	}
}

// worker runs the tasks of one account in order.
type worker struct {
	tasks chan func()
}

// worker returns the account's worker, or nil once the engine stopped.
func (e *Engine) worker(accountID string) *worker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	w, ok := e.workers[accountID]
	if ok {
		return w
	}
	w = &worker{tasks: make(chan func(), workerQueue)}
	e.workers[accountID] = w
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case task := <-w.tasks:
				task()
			case <-e.quit:
				w.drain()
				return
			}
		}
	}()
	return w
}

// drain runs whatever is still buffered.
func (w *worker) drain() {
	for {
		select {
		case task := <-w.tasks:
			task()
		default:
			return
		}
	}
}

// enqueue schedules fn on the account's worker. It blocks while the
// queue is full so that events are never reordered or dropped, and
// reports false once the engine stopped.
func (e *Engine) enqueue(accountID string, fn func()) bool {
	w := e.worker(accountID)
	if w == nil {
		return false
	}
	select {
	case w.tasks <- fn:
		return true
	case <-e.quit:
		return false
	}
}

// Flush waits until every task queued so far has run.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.workers))
	for id := range e.workers {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		done := make(chan struct{})
		if !e.enqueue(id, func() { close(done) }) {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop drains and stops the account workers. Tasks scheduled afterwards
// are dropped. It is safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.quit)
	e.workers = make(map[string]*worker)
	e.mu.Unlock()
	e.wg.Wait()
}

// Run consumes events until ctx is done or the channel closes.
func (e *Engine) Run(ctx context.Context, events <-chan ring.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.Route(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Route applies one event. Call events update the call engine at once;
// everything else is queued on the owning account's worker.
func (e *Engine) Route(ev ring.Event) {
	switch ev := ev.(type) {
	case ring.AccountsChanged:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()
			if err := e.Reload(ctx); err != nil {
				e.logger.Warn("reload accounts failed", zap.Error(err))
			}
		}()
	case ring.IncomingCall:
		e.incomingCall(ev)
	case ring.CallStateChanged:
		e.callChanges(e.calls.StateChanged(ev.CallID, ev.State, ev.Code))
	case ring.ConferenceCreated:
		e.callChanges(e.calls.ConferenceCreated(ev.ConfID, ev.Participants))
	case ring.ConferenceChanged:
		e.callChanges(e.calls.ConferenceChanged(ev.ConfID, ev.State, ev.Participants))
	case ring.ConferenceRemoved:
		e.callChanges(e.calls.ConferenceRemoved(ev.ConfID))
	case ring.ConferenceInfoUpdated:
		e.callChanges(e.calls.ConferenceInfo(ev.ConfID, participants(ev.Participants)))
	case ring.MediaMuted:
		e.callChanges(e.calls.MediaMuted(ev.CallID, ev.Media, ev.Muted))
	case ring.IncomingMessage:
		e.incomingMessage(ev)
	case ring.Scoped:
		e.toAccount(ev)
	default:
		e.logger.Debug("unrouted event", zap.String("kind", ev.Kind()))
	}
}

func (e *Engine) toAccount(ev ring.Scoped) {
	a, err := e.accounts.Get(ev.Account())
	if err != nil {
		e.logger.Warn("event for unknown account", zap.String("kind", ev.Kind()), zap.String("account", ev.Account()))
		return
	}
	e.enqueue(a.ID(), func() {
		if !a.Apply(ev) {
			e.logger.Debug("event ignored", zap.String("kind", ev.Kind()))
		}
		if reg, ok := ev.(ring.RegistrationStateChanged); ok {
			e.registrationChanged(reg)
		}
	})
}

func (e *Engine) incomingCall(ev ring.IncomingCall) {
	a, err := e.accounts.Get(ev.AccountID)
	if err != nil {
		e.logger.Warn("call for unknown account", zap.String("call_id", ev.CallID), zap.String("account", ev.AccountID))
		return
	}
	peer := a.Peer(ev.From)
	e.callChanges(e.calls.Incoming(a.ID(), ev.CallID, peer, peer.ConversationURI()))
}

// DropCalls ends every live call. Used when the daemon connection is
// lost, since the daemon will not report their end.
func (e *Engine) DropCalls() {
	e.callChanges(e.calls.Reset(), nil)
}

// PlaceCall asks the daemon for an outgoing call to address and tracks it.
func (e *Engine) PlaceCall(ctx context.Context, accountID, address string) (string, error) {
	a, err := e.accounts.Get(accountID)
	if err != nil {
		return "", err
	}
	peer := a.Peer(address)
	callID, err := e.cmds.PlaceCall(ctx, accountID, peer.Key())
	if err != nil {
		return "", errors.Wrap(err, "place call")
	}
	changes, err := e.calls.Outgoing(accountID, callID, peer, peer.ConversationURI())
	if errors.Is(err, call.ErrDuplicate) {
		// the daemon already reported the call
		return callID, nil
	}
	e.callChanges(changes, err)
	return callID, nil
}

// DetachParticipant asks the daemon to take a call out of its conference
// and, once accepted, wraps the call in a conference of its own.
func (e *Engine) DetachParticipant(ctx context.Context, callID string) error {
	if err := e.cmds.DetachParticipant(ctx, callID); err != nil {
		return errors.Wrap(err, "detach participant")
	}
	e.callChanges(e.calls.Detach(callID))
	return nil
}

func (e *Engine) incomingMessage(ev ring.IncomingMessage) {
	if ev.CallID == "" {
		e.toAccount(ev)
		return
	}
	c, ok := e.calls.Call(ev.CallID)
	if !ok {
		e.logger.Warn("message for unknown call", zap.String("call_id", ev.CallID))
		return
	}
	a, err := e.accounts.Get(c.AccountID)
	if err != nil {
		return
	}
	e.enqueue(a.ID(), func() { a.ApplyCallMessage(ev, c.ConversationID) })
}

// callChanges forwards call engine results to the conversations they
// concern.
func (e *Engine) callChanges(changes []call.Change, err error) {
	if err != nil {
		if errors.Is(err, call.ErrDuplicate) {
			e.logger.Debug("duplicate call event", zap.Error(err))
			return
		}
		e.logger.Warn("call event dropped", zap.Error(err))
		return
	}
	type target struct{ account, conversation string }
	seen := make(map[target]bool)
	mark := func(c call.Call) {
		if c.ConversationID != "" {
			seen[target{c.AccountID, c.ConversationID}] = true
		}
	}
	for _, ch := range changes {
		switch ch.Kind {
		case call.CallEnded:
			mark(ch.Call)
			ended := ch.Call
			if a, err := e.accounts.Get(ended.AccountID); err == nil {
				e.enqueue(a.ID(), func() { a.OnCallEnded(ended) })
			}
		case call.CallUpdated:
			mark(ch.Call)
		case call.ConferenceUpdated, call.ConferenceRemoved:
			for _, c := range ch.Conference.Calls {
				mark(c)
			}
		}
	}
	for t := range seen {
		a, err := e.accounts.Get(t.account)
		if err != nil {
			continue
		}
		e.enqueue(a.ID(), func() {
			a.SetConferences(t.conversation, e.calls.ConferencesFor(t.account, t.conversation))
		})
	}
}

func participants(in []ring.ParticipantInfo) []call.Participant {
	out := make([]call.Participant, 0, len(in))
	for _, p := range in {
		out = append(out, call.Participant{
			URI:        p.URI,
			Device:     p.Device,
			Active:     p.Active,
			Recording:  p.Recording,
			AudioMuted: p.AudioMuted,
			VideoMuted: p.VideoMuted,
			X:          p.X,
			Y:          p.Y,
			W:          p.W,
			H:          p.H,
		})
	}
	return out
}

func (e *Engine) registrationChanged(ev ring.RegistrationStateChanged) {
	if e.host == nil {
		return
	}
	failed := false
	for _, a := range e.accounts.List() {
		if strings.HasPrefix(a.Registration(), "ERROR") {
			failed = true
			break
		}
	}
	switch cur := e.host.Current(); {
	case failed && cur == status.Ready:
		e.logger.Warn("account registration failed", zap.String("account", ev.AccountID), zap.String("state", ev.State))
		_ = e.host.Transition(status.Degraded)
	case !failed && cur == status.Degraded:
		_ = e.host.Transition(status.Ready)
	}
}
