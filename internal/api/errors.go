package api

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/ringcore/internal/account"
	"github.com/matheus3301/ringcore/internal/call"
	"github.com/matheus3301/ringcore/internal/ring"
)

// toStatus maps engine errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, account.ErrUnknownAccount),
		errors.Is(err, account.ErrUnknownConversation),
		errors.Is(err, account.ErrUnknownRequest),
		errors.Is(err, call.ErrUnknownCall),
		errors.Is(err, call.ErrUnknownConference):
		code = codes.NotFound
	case errors.Is(err, account.ErrNotSwarm),
		errors.Is(err, ring.ErrRemote):
		code = codes.FailedPrecondition
	case errors.Is(err, ring.ErrClosed):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return grpcstatus.Error(code, err.Error())
}
