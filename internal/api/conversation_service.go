package api

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/bus"
	"github.com/matheus3301/ringcore/internal/outbox"
	intsync "github.com/matheus3301/ringcore/internal/sync"
)

const (
	defaultPageLimit   = 50
	defaultSearchLimit = 50
	watchBuffer        = 256
)

// ConversationService implements ringcore.v1.ConversationService.
type ConversationService struct {
	accounts *account.Set
	sender   *outbox.Sender
	journal  *intsync.Journal
	bus      *bus.Bus
	profile  string
}

// NewConversationService creates a conversation service. journal may be
// nil, which disables Search.
func NewConversationService(profile string, accounts *account.Set, sender *outbox.Sender, journal *intsync.Journal, b *bus.Bus) *ConversationService {
	return &ConversationService{
		accounts: accounts,
		sender:   sender,
		journal:  journal,
		bus:      b,
		profile:  profile,
	}
}

// Register adds the service to a gRPC server.
func (s *ConversationService) Register(r grpc.ServiceRegistrar) {
	register(r, s, ConversationServiceName, map[string]unaryFunc{
		"ListConversations": s.ListConversations,
		"ListInteractions":  s.ListInteractions,
		"LoadMore":          s.LoadMore,
		"SendText":          s.SendText,
		"MarkRead":          s.MarkRead,
		"SetVisible":        s.SetVisible,
		"Search":            s.Search,
	}, map[string]streamFunc{
		"Watch": s.Watch,
	})
}

func (s *ConversationService) account(req *structpb.Struct) (*account.Account, error) {
	id, err := requireString(req, "account")
	if err != nil {
		return nil, err
	}
	a, err := s.accounts.Get(id)
	return a, toStatus(err)
}

func (s *ConversationService) ListConversations(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	list := a.Conversations()
	if boolArg(req, "pending") {
		list = a.Pending()
	}
	out := make([]any, 0, len(list))
	for _, c := range list {
		out = append(out, summaryView(c.Summary()))
	}
	return reply(map[string]any{"conversations": out})
}

func (s *ConversationService) ListInteractions(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	key, err := requireString(req, "conversation")
	if err != nil {
		return nil, err
	}
	c, err := a.Conversation(key)
	if err != nil {
		return nil, toStatus(err)
	}
	limit := intArg(req, "limit", defaultPageLimit)
	page := c.Page(stringArg(req, "before"), limit)
	out := make([]any, 0, len(page))
	for _, i := range page {
		out = append(out, interactionView(i))
	}
	return reply(map[string]any{
		"interactions": out,
		"has_more":     limit > 0 && len(page) == limit,
		"loaded":       c.IsLoaded(),
	})
}

// LoadMore starts a history back-fill. With wait set it returns once the
// daemon delivered the requested pages.
func (s *ConversationService) LoadMore(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	key, err := requireString(req, "conversation")
	if err != nil {
		return nil, err
	}
	bf, err := a.LoadMore(ctx, key)
	if err != nil {
		return nil, toStatus(err)
	}
	if boolArg(req, "wait") {
		if err := bf.Wait(ctx); err != nil {
			return nil, toStatus(err)
		}
	}
	done := false
	select {
	case <-bf.Done():
		done = true
	default:
	}
	return reply(map[string]any{"conversation": bf.Conversation(), "done": done})
}

func (s *ConversationService) SendText(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := requireString(req, "account")
	if err != nil {
		return nil, err
	}
	key, err := requireString(req, "conversation")
	if err != nil {
		return nil, err
	}
	text, err := requireString(req, "text")
	if err != nil {
		return nil, err
	}
	id, err := s.sender.Queue(accountID, key, text)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"accepted": true, "client_msg_id": id})
}

func (s *ConversationService) MarkRead(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	key, err := requireString(req, "conversation")
	if err != nil {
		return nil, err
	}
	if err := a.MarkRead(ctx, key); err != nil {
		return nil, toStatus(err)
	}
	return okReply()
}

func (s *ConversationService) SetVisible(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.account(req)
	if err != nil {
		return nil, err
	}
	key, err := requireString(req, "conversation")
	if err != nil {
		return nil, err
	}
	if err := a.SetVisible(key, boolArg(req, "visible")); err != nil {
		return nil, toStatus(err)
	}
	return okReply()
}

func (s *ConversationService) Search(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query, err := requireString(req, "query")
	if err != nil {
		return nil, err
	}
	var out []any
	if s.journal != nil {
		limit := intArg(req, "limit", defaultSearchLimit)
		results, err := s.journal.Search(query, stringArg(req, "account"), stringArg(req, "conversation"), limit)
		if err != nil {
			return nil, toStatus(err)
		}
		for _, r := range results {
			out = append(out, searchView(r))
		}
	}
	return reply(map[string]any{"results": out})
}

// Watch streams bus events whose kind starts with the requested namespace,
// retained events first. With account set, events keyed to other
// accounts are skipped.
func (s *ConversationService) Watch(req *structpb.Struct, stream grpc.ServerStream) error {
	accountID := stringArg(req, "account")
	ch, unsub := s.bus.Subscribe(stringArg(req, "namespace"), watchBuffer)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if accountID != "" && evt.Key != "" && evt.Key != accountID {
				continue
			}
			env, err := reply(map[string]any{
				"event_id":    uuid.New().String(),
				"profile":     s.profile,
				"kind":        evt.Kind,
				"key":         evt.Key,
				"retained":    evt.Retain,
				"occurred_at": evt.Timestamp.UnixMilli(),
				"payload":     payloadView(evt.Payload),
			})
			if err != nil {
				return err
			}
			if err := stream.SendMsg(env); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
