package sync

import (
	"github.com/matheus3301/ringcore/internal/store"
	"go.uber.org/zap"
)

// Reconciler manages sync checkpoints such as conversation read pointers.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	return r.db.SetState(key, value)
}

// GetCheckpoint retrieves a sync checkpoint value, empty when unset.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	v, _, err := r.db.GetState(key)
	return v, err
}

// SetLastRead records the read pointer of a conversation.
func (r *Reconciler) SetLastRead(accountID, conversationID, messageID string) error {
	if messageID == "" {
		return nil
	}
	return r.UpdateCheckpoint(store.LastReadKey(accountID, conversationID), messageID)
}

// LastRead returns the stored read pointer of a conversation.
func (r *Reconciler) LastRead(accountID, conversationID string) string {
	v, err := r.GetCheckpoint(store.LastReadKey(accountID, conversationID))
	if err != nil {
		r.logger.Warn("read checkpoint", zap.String("conversation", conversationID), zap.Error(err))
	}
	return v
}

// ForgetConversation drops every checkpoint of a conversation.
func (r *Reconciler) ForgetConversation(accountID, conversationID string) error {
	return r.db.DeleteState(store.LastReadKey(accountID, conversationID))
}
