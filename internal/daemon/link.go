package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/status"
	intsync "github.com/matheus3301/ringcore/internal/sync"
)

const (
	maxBackoffShift = 5
	loadTimeout     = 30 * time.Second
)

// Link keeps a bridge to the daemon open, redialing when it drops, and
// forwards commands to whichever bridge is current. Commands issued while
// disconnected fail with ring.ErrClosed.
type Link struct {
	socket string
	host   *status.Host
	logger *zap.Logger

	// dial is swapped in tests.
	dial func(ctx context.Context, socket string, logger *zap.Logger) (*ring.Bridge, error)

	mu     sync.RWMutex
	bridge *ring.Bridge

	cancel context.CancelFunc
	done   chan struct{}
}

var _ ring.Commands = (*Link)(nil)

// NewLink creates a link to the daemon listening on socket.
func NewLink(socket string, host *status.Host, logger *zap.Logger) *Link {
	return &Link{
		socket: socket,
		host:   host,
		logger: logger.Named("link"),
		dial:   ring.Dial,
	}
}

// Start connects in the background and feeds daemon events to engine
// until Stop.
func (l *Link) Start(ctx context.Context, engine *intsync.Engine) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		l.run(ctx, engine)
	}()
}

// Stop closes the current bridge and waits for the link to wind down.
func (l *Link) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	if b := l.current(); b != nil {
		_ = b.Close()
	}
	<-l.done
}

func (l *Link) run(ctx context.Context, engine *intsync.Engine) {
	for attempt := 0; ; attempt++ {
		l.moveTo(status.Connecting)
		b, err := l.dial(ctx, l.socket, l.logger)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("daemon unreachable", zap.String("socket", l.socket), zap.Int("attempt", attempt), zap.Error(err))
			l.moveTo(status.Reconnecting)
			if !sleep(ctx, backoff(attempt)) {
				return
			}
			continue
		}
		attempt = -1
		l.serve(ctx, b, engine)
		if ctx.Err() != nil {
			return
		}
		l.moveTo(status.Reconnecting)
	}
}

// serve runs one connection until the bridge or ctx stops.
func (l *Link) serve(ctx context.Context, b *ring.Bridge, engine *intsync.Engine) {
	l.setBridge(b)
	l.logger.Info("connected to daemon", zap.String("socket", l.socket))

	routed := make(chan struct{})
	go func() {
		defer close(routed)
		_ = engine.Run(ctx, b.Events())
	}()

	lctx, cancel := context.WithTimeout(ctx, loadTimeout)
	if err := engine.Load(lctx); err != nil {
		l.logger.Error("initial load failed", zap.Error(err))
	}
	cancel()

	select {
	case <-b.Done():
		l.logger.Warn("daemon connection lost", zap.Error(b.Err()))
	case <-ctx.Done():
		_ = b.Close()
	}
	l.setBridge(nil)
	<-routed
	engine.DropCalls()
}

// moveTo walks the host machine to the wanted state through the
// transitions it allows. Leaving Error always goes through Booting.
func (l *Link) moveTo(to status.State) {
	cur := l.host.Current()
	if cur == to {
		return
	}
	var path []status.State
	switch {
	case cur == status.Error && to == status.Reconnecting:
		path = []status.State{status.Booting}
	case cur == status.Error:
		path = []status.State{status.Booting, to}
	case to == status.Connecting && (cur == status.Syncing || cur == status.Ready || cur == status.Degraded):
		path = []status.State{status.Reconnecting, to}
	default:
		path = []status.State{to}
	}
	for _, s := range path {
		if err := l.host.Transition(s); err != nil {
			l.logger.Warn("host transition refused", zap.Error(err))
			return
		}
	}
}

func (l *Link) setBridge(b *ring.Bridge) {
	l.mu.Lock()
	l.bridge = b
	l.mu.Unlock()
}

func (l *Link) current() *ring.Bridge {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bridge
}

func (l *Link) commands() (ring.Commands, error) {
	b := l.current()
	if b == nil {
		return nil, ring.ErrClosed
	}
	return b, nil
}

// backoff doubles from one second up to 32 seconds.
func backoff(attempt int) time.Duration {
	return time.Second * time.Duration(1<<min(attempt, maxBackoffShift))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Link) Accounts(ctx context.Context) ([]ring.AccountDetails, error) {
	c, err := l.commands()
	if err != nil {
		return nil, err
	}
	return c.Accounts(ctx)
}

func (l *Link) Contacts(ctx context.Context, accountID string) ([]ring.ContactDetails, error) {
	c, err := l.commands()
	if err != nil {
		return nil, err
	}
	return c.Contacts(ctx, accountID)
}

func (l *Link) Conversations(ctx context.Context, accountID string) ([]ring.ConversationDetails, error) {
	c, err := l.commands()
	if err != nil {
		return nil, err
	}
	return c.Conversations(ctx, accountID)
}

func (l *Link) TrustRequests(ctx context.Context, accountID string) ([]ring.TrustRequestReceived, error) {
	c, err := l.commands()
	if err != nil {
		return nil, err
	}
	return c.TrustRequests(ctx, accountID)
}

func (l *Link) ConversationRequests(ctx context.Context, accountID string) ([]ring.ConversationRequestReceived, error) {
	c, err := l.commands()
	if err != nil {
		return nil, err
	}
	return c.ConversationRequests(ctx, accountID)
}

func (l *Link) PlaceCall(ctx context.Context, accountID, to string) (string, error) {
	c, err := l.commands()
	if err != nil {
		return "", err
	}
	return c.PlaceCall(ctx, accountID, to)
}

// callOp forwards a command addressed to a single call.
func (l *Link) callOp(ctx context.Context, callID string, op func(ring.Commands, context.Context, string) error) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return op(c, ctx, callID)
}

func (l *Link) Accept(ctx context.Context, callID string) error {
	return l.callOp(ctx, callID, ring.Commands.Accept)
}

func (l *Link) Refuse(ctx context.Context, callID string) error {
	return l.callOp(ctx, callID, ring.Commands.Refuse)
}

func (l *Link) Hold(ctx context.Context, callID string) error {
	return l.callOp(ctx, callID, ring.Commands.Hold)
}

func (l *Link) Unhold(ctx context.Context, callID string) error {
	return l.callOp(ctx, callID, ring.Commands.Unhold)
}

func (l *Link) HangUp(ctx context.Context, callID string) error {
	return l.callOp(ctx, callID, ring.Commands.HangUp)
}

func (l *Link) DetachParticipant(ctx context.Context, callID string) error {
	return l.callOp(ctx, callID, ring.Commands.DetachParticipant)
}

func (l *Link) AddParticipant(ctx context.Context, callID, confID string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.AddParticipant(ctx, callID, confID)
}

func (l *Link) JoinConference(ctx context.Context, confID, otherConfID string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.JoinConference(ctx, confID, otherConfID)
}

func (l *Link) MuteMedia(ctx context.Context, callID, media string, mute bool) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.MuteMedia(ctx, callID, media, mute)
}

func (l *Link) SendMessage(ctx context.Context, accountID, conversationID, text string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.SendMessage(ctx, accountID, conversationID, text)
}

func (l *Link) SendTextMessage(ctx context.Context, accountID, to, text string) (string, error) {
	c, err := l.commands()
	if err != nil {
		return "", err
	}
	return c.SendTextMessage(ctx, accountID, to, text)
}

func (l *Link) LoadConversationMessages(ctx context.Context, accountID, conversationID, from string, count int) (uint32, error) {
	c, err := l.commands()
	if err != nil {
		return 0, err
	}
	return c.LoadConversationMessages(ctx, accountID, conversationID, from, count)
}

func (l *Link) SetMessageDisplayed(ctx context.Context, accountID, conversationID, messageID string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.SetMessageDisplayed(ctx, accountID, conversationID, messageID)
}

func (l *Link) AddContact(ctx context.Context, accountID, uri string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.AddContact(ctx, accountID, uri)
}

func (l *Link) RemoveContact(ctx context.Context, accountID, uri string, ban bool) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.RemoveContact(ctx, accountID, uri, ban)
}

func (l *Link) AcceptTrustRequest(ctx context.Context, accountID, from string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.AcceptTrustRequest(ctx, accountID, from)
}

func (l *Link) DiscardTrustRequest(ctx context.Context, accountID, from string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.DiscardTrustRequest(ctx, accountID, from)
}

func (l *Link) AcceptConversationRequest(ctx context.Context, accountID, conversationID string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.AcceptConversationRequest(ctx, accountID, conversationID)
}

func (l *Link) DeclineConversationRequest(ctx context.Context, accountID, conversationID string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.DeclineConversationRequest(ctx, accountID, conversationID)
}

func (l *Link) LookupAddress(ctx context.Context, accountID, address string) error {
	c, err := l.commands()
	if err != nil {
		return err
	}
	return c.LookupAddress(ctx, accountID, address)
}
