package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/conversation"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/store"
)

const (
	KindSendAck    = "message.send_ack"
	KindSendFailed = "message.send_failed"

	sendTimeout = 15 * time.Second
)

// Timeline is the in-memory side of an account the sender reports to.
// *account.Account implements it.
type Timeline interface {
	Conversation(key string) (*conversation.Conversation, error)
	AddOutgoing(key, localID, body string) error
	SettleOutgoing(key, localID, daemonID string, status model.Status)
}

// Timelines resolves an account id to its timeline.
type Timelines func(accountID string) (Timeline, error)

// SendResult is the payload of send_ack and send_failed events.
type SendResult struct {
	ClientMsgID    string
	AccountID      string
	ConversationID string
	DaemonMsgID    string
	Error          string
}

// Sender drains the outbox and hands messages to the daemon.
type Sender struct {
	db        *store.DB
	cmds      ring.Commands
	timelines Timelines
	bus       *bus.Bus
	logger    *zap.Logger
	kick      chan struct{}
	cancel    context.CancelFunc
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, cmds ring.Commands, timelines Timelines, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:        db,
		cmds:      cmds,
		timelines: timelines,
		bus:       b,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Queue stores a message for sending and wakes the loop. The returned id
// identifies the message in send_ack and send_failed events.
func (s *Sender) Queue(accountID, conversationID, body string) (string, error) {
	tl, err := s.timelines(accountID)
	if err != nil {
		return "", err
	}
	c, err := tl.Conversation(conversationID)
	if err != nil {
		return "", err
	}
	clientMsgID := uuid.NewString()
	if err := s.db.QueueOutbox(clientMsgID, accountID, c.Key(), body); err != nil {
		return "", err
	}
	select {
	case s.kick <- struct{}{}:
	default:
	}
	return clientMsgID, nil
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.kick:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	entries, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to fetch pending outbox", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		s.process(ctx, entry)
	}
}

func (s *Sender) process(ctx context.Context, entry store.OutboxEntry) {
	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark sending", zap.String("client_msg_id", entry.ClientMsgID), zap.Error(err))
		return
	}

	tl, err := s.timelines(entry.AccountID)
	if err != nil {
		s.fail(entry, nil, err)
		return
	}
	c, err := tl.Conversation(entry.ConversationID)
	if err != nil {
		s.fail(entry, nil, err)
		return
	}

	// Legacy messages are shown right away; swarm messages appear when
	// the daemon commits them.
	if err := tl.AddOutgoing(c.Key(), entry.ClientMsgID, entry.Body); err != nil {
		s.logger.Warn("optimistic insert failed", zap.String("client_msg_id", entry.ClientMsgID), zap.Error(err))
	}

	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	var daemonMsgID string
	if c.IsSwarm() {
		err = s.cmds.SendMessage(sctx, entry.AccountID, c.SwarmID(), entry.Body)
	} else {
		daemonMsgID, err = s.cmds.SendTextMessage(sctx, entry.AccountID, c.Key(), entry.Body)
	}
	if err != nil {
		s.fail(entry, tl, fmt.Errorf("send: %w", err))
		return
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID, daemonMsgID); err != nil {
		s.logger.Error("failed to mark sent", zap.String("client_msg_id", entry.ClientMsgID), zap.Error(err))
	}
	if !c.IsSwarm() {
		tl.SettleOutgoing(c.Key(), entry.ClientMsgID, daemonMsgID, model.StatusSending)
	}
	s.bus.Publish(bus.NewEvent(KindSendAck, entry.AccountID, SendResult{
		ClientMsgID:    entry.ClientMsgID,
		AccountID:      entry.AccountID,
		ConversationID: entry.ConversationID,
		DaemonMsgID:    daemonMsgID,
	}))
	s.logger.Info("message sent",
		zap.String("client_msg_id", entry.ClientMsgID),
		zap.String("conversation", entry.ConversationID),
		zap.String("daemon_msg_id", daemonMsgID),
	)
}

func (s *Sender) fail(entry store.OutboxEntry, tl Timeline, err error) {
	s.logger.Warn("send failed", zap.String("client_msg_id", entry.ClientMsgID), zap.Error(err))
	if markErr := s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); markErr != nil {
		s.logger.Error("failed to mark failed", zap.String("client_msg_id", entry.ClientMsgID), zap.Error(markErr))
	}
	if tl != nil {
		tl.SettleOutgoing(entry.ConversationID, entry.ClientMsgID, "", model.StatusFailure)
	}
	s.bus.Publish(bus.NewEvent(KindSendFailed, entry.AccountID, SendResult{
		ClientMsgID:    entry.ClientMsgID,
		AccountID:      entry.AccountID,
		ConversationID: entry.ConversationID,
		Error:          err.Error(),
	}))
}
