package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/ring"
	intsync "github.com/matheus3301/ringcore/internal/sync"
)

// CallService implements ringcore.v1.CallService. Commands go straight
// to the daemon; the call engine follows from the events it sends back.
type CallService struct {
	cmds   ring.Commands
	calls  *call.Engine
	router *intsync.Engine
}

// NewCallService creates a call service.
func NewCallService(cmds ring.Commands, calls *call.Engine, router *intsync.Engine) *CallService {
	return &CallService{cmds: cmds, calls: calls, router: router}
}

// Register adds the service to a gRPC server.
func (s *CallService) Register(r grpc.ServiceRegistrar) {
	register(r, s, CallServiceName, map[string]unaryFunc{
		"ListCalls":       s.ListCalls,
		"ListConferences": s.ListConferences,
		"PlaceCall":       s.PlaceCall,
		"Accept":          s.callCommand(s.cmds.Accept),
		"Refuse":          s.callCommand(s.cmds.Refuse),
		"Hold":            s.callCommand(s.cmds.Hold),
		"Unhold":          s.callCommand(s.cmds.Unhold),
		"HangUp":          s.callCommand(s.cmds.HangUp),
		"Detach":          s.callCommand(s.router.DetachParticipant),
		"AddParticipant":  s.AddParticipant,
		"JoinConference":  s.JoinConference,
		"Mute":            s.Mute,
	}, nil)
}

func (s *CallService) ListCalls(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID := stringArg(req, "account")
	var out []any
	for _, c := range s.calls.Calls() {
		if accountID != "" && c.AccountID != accountID {
			continue
		}
		out = append(out, callView(c))
	}
	return reply(map[string]any{"calls": out})
}

func (s *CallService) ListConferences(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var out []any
	for _, conf := range s.calls.Conferences() {
		out = append(out, conferenceView(conf))
	}
	return reply(map[string]any{"conferences": out})
}

func (s *CallService) PlaceCall(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := requireString(req, "account")
	if err != nil {
		return nil, err
	}
	address, err := requireString(req, "uri")
	if err != nil {
		return nil, err
	}
	id, err := s.router.PlaceCall(ctx, accountID, address)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"call_id": id})
}

// callCommand wraps a daemon command taking a single live call id.
func (s *CallService) callCommand(cmd func(ctx context.Context, callID string) error) unaryFunc {
	return func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
		id, err := s.liveCall(req, "call")
		if err != nil {
			return nil, err
		}
		if err := cmd(ctx, id); err != nil {
			return nil, toStatus(err)
		}
		return okReply()
	}
}

func (s *CallService) liveCall(req *structpb.Struct, field string) (string, error) {
	id, err := requireString(req, field)
	if err != nil {
		return "", err
	}
	if _, ok := s.calls.Call(id); !ok {
		return "", grpcstatus.Errorf(codes.NotFound, "%v: %s", call.ErrUnknownCall, id)
	}
	return id, nil
}

func (s *CallService) liveConference(req *structpb.Struct, field string) (string, error) {
	id, err := requireString(req, field)
	if err != nil {
		return "", err
	}
	if _, ok := s.calls.Conference(id); !ok {
		return "", grpcstatus.Errorf(codes.NotFound, "%v: %s", call.ErrUnknownConference, id)
	}
	return id, nil
}

func (s *CallService) AddParticipant(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	callID, err := s.liveCall(req, "call")
	if err != nil {
		return nil, err
	}
	confID, err := s.liveConference(req, "conference")
	if err != nil {
		return nil, err
	}
	if err := s.cmds.AddParticipant(ctx, callID, confID); err != nil {
		return nil, toStatus(err)
	}
	return okReply()
}

func (s *CallService) JoinConference(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	confID, err := s.liveConference(req, "conference")
	if err != nil {
		return nil, err
	}
	other, err := s.liveConference(req, "other")
	if err != nil {
		return nil, err
	}
	if err := s.cmds.JoinConference(ctx, confID, other); err != nil {
		return nil, toStatus(err)
	}
	return okReply()
}

func (s *CallService) Mute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	callID, err := s.liveCall(req, "call")
	if err != nil {
		return nil, err
	}
	media := stringArg(req, "media")
	switch media {
	case "audio", "video":
	default:
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "media must be audio or video, got %q", media)
	}
	if err := s.cmds.MuteMedia(ctx, callID, media, boolArg(req, "mute")); err != nil {
		return nil, toStatus(err)
	}
	return okReply()
}
