package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/ring"
	"github.com/matheus3301/ringcore/internal/status"
)

// Load reads every account from the daemon and moves the host from
// connecting through syncing to ready.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.transition(status.Syncing); err != nil {
		return err
	}
	if err := e.Reload(ctx); err != nil {
		_ = e.transition(status.Error)
		return err
	}
	return e.transition(status.Ready)
}

func (e *Engine) transition(to status.State) error {
	if e.host == nil {
		return nil
	}
	return e.host.Transition(to)
}

// Reload synchronizes the account set with the daemon: new accounts are
// loaded, vanished ones dropped.
func (e *Engine) Reload(ctx context.Context) error {
	details, err := e.cmds.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	present := make(map[string]bool, len(details))
	for _, d := range details {
		present[d.ID] = true
		if _, err := e.accounts.Get(d.ID); err == nil {
			continue
		}
		a, err := e.loadAccount(ctx, d)
		if err != nil {
			return fmt.Errorf("load account %s: %w", d.ID, err)
		}
		e.accounts.Add(a)
		e.logger.Info("account loaded",
			zap.String("account", d.ID),
			zap.Int("conversations", len(a.Conversations())),
			zap.Int("pending", len(a.Pending())),
		)
	}
	for _, a := range e.accounts.List() {
		if !present[a.ID()] {
			e.accounts.Remove(a.ID())
			e.bus.Forget(a.ID())
			e.logger.Info("account removed", zap.String("account", a.ID()))
		}
	}
	return nil
}

func (e *Engine) loadAccount(ctx context.Context, d ring.AccountDetails) (*account.Account, error) {
	a := account.New(account.Config{
		ID:           d.ID,
		URI:          d.URI,
		BackfillPage: e.opts.BackfillPage,
		BackfillRate: e.opts.BackfillRate,
	}, e.cmds, e.bus, e.logger)

	contacts, err := e.cmds.Contacts(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("contacts: %w", err)
	}
	convs, err := e.cmds.Conversations(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("conversations: %w", err)
	}
	trust, err := e.cmds.TrustRequests(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("trust requests: %w", err)
	}
	invites, err := e.cmds.ConversationRequests(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("conversation requests: %w", err)
	}

	a.LoadContacts(contacts)
	a.LoadConversations(convs)
	a.LoadRequests(trust, invites)
	if d.Registration != "" {
		a.Apply(ring.RegistrationStateChanged{Scope: ring.Scope{AccountID: d.ID}, State: d.Registration})
	}
	if e.restorer != nil {
		if err := e.restorer.Restore(a); err != nil {
			e.logger.Warn("restore history failed", zap.String("account", d.ID), zap.Error(err))
		}
	}
	return a, nil
}
