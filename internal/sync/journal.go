package sync

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/model"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/store"
	"github.com/matheus3301/ringcore/internal/uri"
)

const journalBuffer = 1024

// Journal persists conversation history published on the bus and
// restores it into accounts on load.
type Journal struct {
	db         *store.DB
	reconciler *Reconciler
	bus        *bus.Bus
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewJournal creates a new journal.
func NewJournal(db *store.DB, b *bus.Bus, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		db:         db,
		reconciler: NewReconciler(db, logger),
		bus:        b,
		logger:     logger.Named("journal"),
	}
}

// Start subscribes to engine events on the bus.
func (j *Journal) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	ch, unsub := j.bus.Subscribe("", journalBuffer)

	go func() {
		defer close(j.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				j.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the journal.
func (j *Journal) Stop() {
	if j.cancel != nil {
		j.cancel()
		<-j.done
	}
}

func (j *Journal) handleEvent(evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case account.InteractionEvent:
		err = j.IngestInteraction(p)
	case account.HistoryCleared:
		if evt.Kind == account.KindHistoryCleared {
			err = j.ClearConversation(p.AccountID, p.ConversationID)
		}
	case account.ReadMoved:
		err = j.IngestRead(p)
	case account.ContactUpdated:
		err = j.IngestContact(p)
	default:
		return
	}
	if err != nil {
		j.logger.Error("failed to persist event", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// IngestInteraction stores an added or updated interaction (idempotent).
func (j *Journal) IngestInteraction(ev account.InteractionEvent) error {
	if ev.Interaction == nil {
		return nil
	}
	if err := j.db.UpsertInteraction(store.FromModel(ev.AccountID, ev.ConversationID, ev.Interaction)); err != nil {
		return fmt.Errorf("upsert interaction: %w", err)
	}
	return nil
}

// IngestRead stores a moved read pointer.
func (j *Journal) IngestRead(ev account.ReadMoved) error {
	if err := j.reconciler.SetLastRead(ev.AccountID, ev.ConversationID, ev.MessageID); err != nil {
		return fmt.Errorf("set last read: %w", err)
	}
	if err := j.db.MarkConversationRead(ev.AccountID, ev.ConversationID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// IngestContact caches the names of a contact.
func (j *Journal) IngestContact(ev account.ContactUpdated) error {
	ct := ev.Contact
	if ct == nil {
		return nil
	}
	name, _ := ct.Username()
	p := ct.Profile()
	if name == "" && p.DisplayName == "" && p.Avatar == "" {
		return nil
	}
	if err := j.db.UpsertPeer(&store.Peer{
		AccountID:   ev.AccountID,
		URI:         ct.Key(),
		Username:    name,
		DisplayName: p.DisplayName,
		Avatar:      p.Avatar,
	}); err != nil {
		return fmt.Errorf("upsert peer: %w", err)
	}
	return nil
}

// ClearConversation deletes the stored history of a conversation.
func (j *Journal) ClearConversation(accountID, conversationID string) error {
	n, err := j.db.ClearConversation(accountID, conversationID)
	if err != nil {
		return err
	}
	if err := j.reconciler.ForgetConversation(accountID, conversationID); err != nil {
		return fmt.Errorf("forget checkpoint: %w", err)
	}
	j.logger.Info("history cleared", zap.String("conversation", conversationID), zap.Int64("interactions", n))
	return nil
}

// Restore rebuilds an account's legacy conversations and cached peer
// names. Swarm history is owned by the daemon and back-filled on demand.
func (j *Journal) Restore(a *account.Account) error {
	peers, err := j.db.ListPeers(a.ID())
	if err != nil {
		return fmt.Errorf("list peers: %w", err)
	}
	scope := ring.Scope{AccountID: a.ID()}
	for _, p := range peers {
		if p.Username != "" {
			a.Apply(ring.RegisteredNameFound{Scope: scope, Address: p.URI, Name: p.Username})
		}
		if p.DisplayName != "" || p.Avatar != "" {
			a.Apply(ring.ProfileReceived{Scope: scope, From: p.URI, DisplayName: p.DisplayName, Avatar: p.Avatar})
		}
	}

	convs, err := j.db.ListConversations(a.ID())
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	restored := 0
	for _, c := range convs {
		if c.Swarm || uri.Parse(c.ConversationID).IsSwarm() {
			continue
		}
		rows, err := j.db.LoadHistory(a.ID(), c.ConversationID)
		if err != nil {
			return fmt.Errorf("load history %s: %w", c.ConversationID, err)
		}
		items := make([]*model.Interaction, 0, len(rows))
		for _, r := range rows {
			i, err := r.Model()
			if err != nil {
				j.logger.Warn("skipping stored interaction", zap.String("interaction", r.InteractionID), zap.Error(err))
				continue
			}
			items = append(items, i)
		}
		a.RestoreHistory(c.ConversationID, j.reconciler.LastRead(a.ID(), c.ConversationID), items)
		restored += len(items)
	}
	j.logger.Info("history restored",
		zap.String("account", a.ID()),
		zap.Int("conversations", len(convs)),
		zap.Int("interactions", restored),
	)
	return nil
}

// Search finds stored interactions matching query.
func (j *Journal) Search(query, accountID, conversationID string, limit int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return j.db.SearchInteractions(query, accountID, conversationID, limit)
}
