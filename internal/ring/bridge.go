package ring

import (
	"context"
	"net"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned for commands issued after the bridge closed.
	ErrClosed = errors.New("bridge closed")
	// ErrRemote wraps a rejection reported by the daemon.
	ErrRemote = errors.New("daemon rejected command")

	errUnknownEvent = errors.New("unknown event kind")
)

// Bridge speaks to the daemon over a stream connection using CBOR
// frames. It implements Commands and delivers events in arrival order.
type Bridge struct {
	conn   net.Conn
	dec    *cbor.Decoder
	logger *zap.Logger

	wmu sync.Mutex
	enc *cbor.Encoder

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan result
	err     error

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

type result struct {
	reply reply
	err   error
}

var _ Commands = (*Bridge)(nil)

// Dial connects to the daemon's unix socket.
func Dial(ctx context.Context, socketPath string, logger *zap.Logger) (*Bridge, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, "dial daemon at %s", socketPath)
	}
	return NewBridge(conn, logger), nil
}

// NewBridge starts a bridge over an established connection.
func NewBridge(conn net.Conn, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		conn:    conn,
		dec:     NewDecoder(conn),
		enc:     NewEncoder(conn),
		logger:  logger.Named("bridge"),
		pending: make(map[uint64]chan result),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
	}
	go b.readLoop()
	return b
}

// Events delivers daemon notifications in the order they were sent. The
// channel is closed when the bridge stops.
func (b *Bridge) Events() <-chan Event { return b.events }

// Done is closed when the bridge stops.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Err returns why the bridge stopped, nil while it runs.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close stops the bridge and fails pending commands.
func (b *Bridge) Close() error {
	b.stop(ErrClosed)
	return nil
}

func (b *Bridge) stop(err error) {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.err = err
		pending := b.pending
		b.pending = make(map[uint64]chan result)
		b.mu.Unlock()

		close(b.done)
		_ = b.conn.Close()
		for _, ch := range pending {
			ch <- result{err: ErrClosed}
		}
	})
}

func (b *Bridge) readLoop() {
	defer close(b.events)
	for {
		var f frame
		if err := b.dec.Decode(&f); err != nil {
			b.stop(errors.Wrap(err, "read frame"))
			return
		}
		if f.Kind == kindReply {
			b.deliver(f)
			continue
		}
		ev, err := decodeEvent(f.Kind, f.Body)
		if err != nil {
			b.logger.Warn("dropping event", zap.String("kind", f.Kind), zap.Error(err))
			continue
		}
		select {
		case b.events <- ev:
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) deliver(f frame) {
	b.mu.Lock()
	ch, ok := b.pending[f.Seq]
	delete(b.pending, f.Seq)
	b.mu.Unlock()
	if !ok {
		b.logger.Debug("reply for unknown command", zap.Uint64("seq", f.Seq))
		return
	}
	var r reply
	if err := decMode.Unmarshal(f.Body, &r); err != nil {
		ch <- result{err: errors.Wrap(err, "decode reply")}
		return
	}
	ch <- result{reply: r}
}

// call sends a command and waits for its reply. out may be nil.
func (b *Bridge) call(ctx context.Context, kind string, args, out any) error {
	body, err := encMode.Marshal(args)
	if err != nil {
		return errors.Wrapf(err, "encode %s", kind)
	}

	seq := b.seq.Add(1)
	ch := make(chan result, 1)
	b.mu.Lock()
	if b.err != nil {
		b.mu.Unlock()
		return ErrClosed
	}
	b.pending[seq] = ch
	b.mu.Unlock()

	b.wmu.Lock()
	err = b.enc.Encode(frame{Kind: kind, Seq: seq, Body: body})
	b.wmu.Unlock()
	if err != nil {
		b.forget(seq)
		return errors.Wrapf(err, "send %s", kind)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if !res.reply.OK {
			return errors.Wrapf(ErrRemote, "%s: %s", kind, res.reply.Err)
		}
		if out != nil && len(res.reply.Value) > 0 {
			if err := decMode.Unmarshal(res.reply.Value, out); err != nil {
				return errors.Wrapf(err, "decode %s result", kind)
			}
		}
		return nil
	case <-ctx.Done():
		b.forget(seq)
		return ctx.Err()
	}
}

func (b *Bridge) forget(seq uint64) {
	b.mu.Lock()
	delete(b.pending, seq)
	b.mu.Unlock()
}

func deref(ptr Event) Event {
	return reflect.ValueOf(ptr).Elem().Interface().(Event)
}

type args map[string]any

func (b *Bridge) Accounts(ctx context.Context) ([]AccountDetails, error) {
	var out []AccountDetails
	err := b.call(ctx, "getAccounts", args{}, &out)
	return out, err
}

func (b *Bridge) Contacts(ctx context.Context, accountID string) ([]ContactDetails, error) {
	var out []ContactDetails
	err := b.call(ctx, "getContacts", args{"accountId": accountID}, &out)
	return out, err
}

func (b *Bridge) Conversations(ctx context.Context, accountID string) ([]ConversationDetails, error) {
	var out []ConversationDetails
	err := b.call(ctx, "getConversations", args{"accountId": accountID}, &out)
	return out, err
}

func (b *Bridge) TrustRequests(ctx context.Context, accountID string) ([]TrustRequestReceived, error) {
	var out []TrustRequestReceived
	err := b.call(ctx, "getTrustRequests", args{"accountId": accountID}, &out)
	return out, err
}

func (b *Bridge) ConversationRequests(ctx context.Context, accountID string) ([]ConversationRequestReceived, error) {
	var out []ConversationRequestReceived
	err := b.call(ctx, "getConversationRequests", args{"accountId": accountID}, &out)
	return out, err
}

func (b *Bridge) PlaceCall(ctx context.Context, accountID, to string) (string, error) {
	var callID string
	err := b.call(ctx, "placeCall", args{"accountId": accountID, "to": to}, &callID)
	return callID, err
}

func (b *Bridge) Accept(ctx context.Context, callID string) error {
	return b.call(ctx, "accept", args{"callId": callID}, nil)
}

func (b *Bridge) Refuse(ctx context.Context, callID string) error {
	return b.call(ctx, "refuse", args{"callId": callID}, nil)
}

func (b *Bridge) Hold(ctx context.Context, callID string) error {
	return b.call(ctx, "hold", args{"callId": callID}, nil)
}

func (b *Bridge) Unhold(ctx context.Context, callID string) error {
	return b.call(ctx, "unhold", args{"callId": callID}, nil)
}

func (b *Bridge) HangUp(ctx context.Context, callID string) error {
	return b.call(ctx, "hangUp", args{"callId": callID}, nil)
}

func (b *Bridge) AddParticipant(ctx context.Context, callID, confID string) error {
	return b.call(ctx, "addParticipant", args{"callId": callID, "confId": confID}, nil)
}

func (b *Bridge) DetachParticipant(ctx context.Context, callID string) error {
	return b.call(ctx, "detachParticipant", args{"callId": callID}, nil)
}

func (b *Bridge) JoinConference(ctx context.Context, confID, otherConfID string) error {
	return b.call(ctx, "joinConference", args{"confId": confID, "otherConfId": otherConfID}, nil)
}

func (b *Bridge) MuteMedia(ctx context.Context, callID, media string, mute bool) error {
	return b.call(ctx, "muteMedia", args{"callId": callID, "media": media, "mute": mute}, nil)
}

func (b *Bridge) SendMessage(ctx context.Context, accountID, conversationID, text string) error {
	return b.call(ctx, "sendMessage", args{"accountId": accountID, "conversationId": conversationID, "text": text}, nil)
}

func (b *Bridge) SendTextMessage(ctx context.Context, accountID, to, text string) (string, error) {
	var msgID string
	err := b.call(ctx, "sendTextMessage", args{
		"accountId": accountID,
		"to":        to,
		"payloads":  map[string]string{"text/plain": text},
	}, &msgID)
	return msgID, err
}

func (b *Bridge) LoadConversationMessages(ctx context.Context, accountID, conversationID, from string, count int) (uint32, error) {
	var requestID uint32
	err := b.call(ctx, "loadConversationMessages", args{
		"accountId":      accountID,
		"conversationId": conversationID,
		"from":           from,
		"count":          count,
	}, &requestID)
	return requestID, err
}

func (b *Bridge) SetMessageDisplayed(ctx context.Context, accountID, conversationID, messageID string) error {
	return b.call(ctx, "setMessageDisplayed", args{
		"accountId":      accountID,
		"conversationId": conversationID,
		"messageId":      messageID,
	}, nil)
}

func (b *Bridge) AddContact(ctx context.Context, accountID, uri string) error {
	return b.call(ctx, "addContact", args{"accountId": accountID, "uri": uri}, nil)
}

func (b *Bridge) RemoveContact(ctx context.Context, accountID, uri string, ban bool) error {
	return b.call(ctx, "removeContact", args{"accountId": accountID, "uri": uri, "ban": ban}, nil)
}

func (b *Bridge) AcceptTrustRequest(ctx context.Context, accountID, from string) error {
	return b.call(ctx, "acceptTrustRequest", args{"accountId": accountID, "from": from}, nil)
}

func (b *Bridge) DiscardTrustRequest(ctx context.Context, accountID, from string) error {
	return b.call(ctx, "discardTrustRequest", args{"accountId": accountID, "from": from}, nil)
}

func (b *Bridge) AcceptConversationRequest(ctx context.Context, accountID, conversationID string) error {
	return b.call(ctx, "acceptConversationRequest", args{"accountId": accountID, "conversationId": conversationID}, nil)
}

func (b *Bridge) DeclineConversationRequest(ctx context.Context, accountID, conversationID string) error {
	return b.call(ctx, "declineConversationRequest", args{"accountId": accountID, "conversationId": conversationID}, nil)
}

func (b *Bridge) LookupAddress(ctx context.Context, accountID, address string) error {
	return b.call(ctx, "lookupAddress", args{"accountId": accountID, "address": address}, nil)
}
