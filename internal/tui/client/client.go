package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/ringcore/internal/api"
)

// Args are the fields of a request. Values must be structpb compatible.
type Args map[string]any

// Client wraps the gRPC connection to the engine host.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the host's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewFromConn wraps an existing connection.
func NewFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes a unary method.
func (c *Client) Call(ctx context.Context, service, method string, args Args) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(service, method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Account(ctx context.Context, method string, args Args) (*structpb.Struct, error) {
	return c.Call(ctx, api.AccountServiceName, method, args)
}

func (c *Client) Conversation(ctx context.Context, method string, args Args) (*structpb.Struct, error) {
	return c.Call(ctx, api.ConversationServiceName, method, args)
}

func (c *Client) Calls(ctx context.Context, method string, args Args) (*structpb.Struct, error) {
	return c.Call(ctx, api.CallServiceName, method, args)
}

// Watcher receives events from a Watch stream.
type Watcher struct {
	stream grpc.ClientStream
}

// Watch opens an event stream. namespace filters event kinds by prefix;
// accountID, when set, skips events keyed to other accounts.
func (c *Client) Watch(ctx context.Context, namespace, accountID string) (*Watcher, error) {
	desc := &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, api.FullMethod(api.ConversationServiceName, "Watch"))
	if err != nil {
		return nil, err
	}
	in, err := structpb.NewStruct(Args{"namespace": namespace, "account": accountID})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &Watcher{stream: stream}, nil
}

// Recv blocks until the next event envelope arrives.
func (w *Watcher) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := w.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Field helpers for reading replies.

func String(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func Int(s *structpb.Struct, name string) int64 {
	return int64(s.GetFields()[name].GetNumberValue())
}

func Bool(s *structpb.Struct, name string) bool {
	return s.GetFields()[name].GetBoolValue()
}

func Struct(s *structpb.Struct, name string) *structpb.Struct {
	return s.GetFields()[name].GetStructValue()
}

// List returns the struct elements of a list field.
func List(s *structpb.Struct, name string) []*structpb.Struct {
	var out []*structpb.Struct
	for _, v := range s.GetFields()[name].GetListValue().GetValues() {
		if st := v.GetStructValue(); st != nil {
			out = append(out, st)
		}
	}
	return out
}
