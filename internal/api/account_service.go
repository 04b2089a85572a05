package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/status"
	"github.com/matheus3301/ringcore/internal/store"
)

// AccountService implements ringcore.v1.AccountService: host status,
// accounts, contacts and trust requests.
type AccountService struct {
	profile   string
	startedAt time.Time
	host      *status.Host
	accounts  *account.Set
	db        *store.DB
}

// NewAccountService creates a new account service. db may be nil.
func NewAccountService(profile string, host *status.Host, accounts *account.Set, db *store.DB) *AccountService {
	return &AccountService{
		profile:   profile,
		startedAt: time.Now(),
		host:      host,
		accounts:  accounts,
		db:        db,
	}
}

// Register adds the service to a gRPC server.
func (s *AccountService) Register(r grpc.ServiceRegistrar) {
	register(r, s, AccountServiceName, map[string]unaryFunc{
		"GetStatus":      s.GetStatus,
		"ListAccounts":   s.ListAccounts,
		"ListContacts":   s.ListContacts,
		"ListRequests":   s.ListRequests,
		"AcceptRequest":  s.AcceptRequest,
		"DiscardRequest": s.DiscardRequest,
		"AddContact":     s.AddContact,
		"RemoveContact":  s.RemoveContact,
	}, nil)
}

func (s *AccountService) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	accounts := s.accounts.List()
	unread := 0
	for _, a := range accounts {
		unread += a.UnreadTotal()
	}
	resp := map[string]any{
		"profile":   s.profile,
		"status":    string(s.host.Current()),
		"uptime_ms": time.Since(s.startedAt).Milliseconds(),
		"accounts":  len(accounts),
		"unread":    unread,
	}

	// Stored counts are informative; a failing query does not fail the call.
	if s.db != nil {
		if n, err := s.db.ConversationCount(); err == nil {
			resp["stored_conversations"] = n
		}
		if n, err := s.db.InteractionCount(); err == nil {
			resp["stored_interactions"] = n
		}
	}
	return reply(resp)
}

func (s *AccountService) ListAccounts(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var out []any
	for _, a := range s.accounts.List() {
		out = append(out, map[string]any{
			"id":            a.ID(),
			"uri":           a.URI(),
			"registration":  a.Registration(),
			"unread":        a.UnreadTotal(),
			"conversations": len(a.Conversations()),
			"pending":       len(a.Pending()),
		})
	}
	return reply(map[string]any{"accounts": out})
}

func (s *AccountService) account(req *structpb.Struct) (*account.Account, error) {
	id, err := requireString(req, "account")
	if err != nil {
		return nil, err
	}
	a, err := s.accounts.Get(id)
	return a, toStatus(err)
}

func (s *AccountService) ListContacts(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, c := range a.Contacts().Contacts() {
		out = append(out, contactView(c))
	}
	return reply(map[string]any{"contacts": out})
}

func (s *AccountService) ListRequests(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	var out []any
	for _, r := range a.Requests() {
		out = append(out, requestView(r))
	}
	return reply(map[string]any{"requests": out})
}

func (s *AccountService) AcceptRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.withPeer(ctx, req, "from", (*account.Account).AcceptRequest)
}

func (s *AccountService) DiscardRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.withPeer(ctx, req, "from", (*account.Account).DiscardRequest)
}

func (s *AccountService) AddContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.withPeer(ctx, req, "uri", (*account.Account).AddContact)
}

func (s *AccountService) RemoveContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ban := boolArg(req, "ban")
	return s.withPeer(ctx, req, "uri", func(a *account.Account, ctx context.Context, address string) error {
		return a.RemoveContact(ctx, address, ban)
	})
}

func (s *AccountService) withPeer(ctx context.Context, req *structpb.Struct, field string, fn func(*account.Account, context.Context, string) error) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	address, err := requireString(req, field)
	if err != nil {
		return nil, err
	}
	if err := fn(a, ctx, address); err != nil {
		return nil, toStatus(err)
	}
	return okReply()
}
