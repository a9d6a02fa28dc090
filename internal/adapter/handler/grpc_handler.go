package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/deptstock/stock-ledger/internal/core/domain"
	"github.com/deptstock/stock-ledger/internal/core/service"
)

// LedgerServer is the gRPC surface of the ledger. Messages travel as JSON
// (content-subtype "json"), see codec.go.
type LedgerServer interface {
	Assign(context.Context, *AssignMessage) (*TransitionReply, error)
	Return(context.Context, *ReturnMessage) (*TransitionReply, error)
	ListItems(context.Context, *ListItemsMessage) (*ItemsReply, error)
	ListLogs(context.Context, *ListLogsMessage) (*LogsReply, error)
}

type GRPCHandler struct {
	ledger *service.LedgerService
	logger *zap.Logger
}

func NewGRPCHandler(ledger *service.LedgerService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{ledger: ledger, logger: logger}
}

// Register attaches the handler to s.
func (h *GRPCHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&LedgerServiceDesc, h)
}

func (h *GRPCHandler) Assign(ctx context.Context, req *AssignMessage) (*TransitionReply, error) {
	if !req.valid() {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}

	result, err := h.ledger.Assign(ctx, req.toRequest())
	if err != nil {
		return nil, h.mapError("Assign", err)
	}

	item := newItemView(result.Item)
	return &TransitionReply{
		Success: true,
		Message: "Item assigned",
		Item:    &item,
		LogID:   result.Entry.ID,
	}, nil
}

func (h *GRPCHandler) Return(ctx context.Context, req *ReturnMessage) (*TransitionReply, error) {
	if !req.valid() {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}

	result, err := h.ledger.Return(ctx, req.toRequest())
	if err != nil {
		return nil, h.mapError("Return", err)
	}

	item := newItemView(result.Item)
	return &TransitionReply{
		Success: true,
		Message: "Item returned",
		Item:    &item,
		LogID:   result.Entry.ID,
	}, nil
}

func (h *GRPCHandler) ListItems(ctx context.Context, req *ListItemsMessage) (*ItemsReply, error) {
	items, err := h.ledger.ListItems(ctx, domain.ItemFilter{DepartmentID: req.DepartmentID})
	if err != nil {
		return nil, h.mapError("ListItems", err)
	}

	reply := &ItemsReply{Items: make([]ItemView, 0, len(items))}
	for _, item := range items {
		reply.Items = append(reply.Items, newItemView(item))
	}
	return reply, nil
}

func (h *GRPCHandler) ListLogs(ctx context.Context, req *ListLogsMessage) (*LogsReply, error) {
	filter := domain.LogFilter{Action: domain.Action(req.Action), ItemID: req.ItemID}
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown action %q", req.Action)
	}

	entries, err := h.ledger.ListLogs(ctx, filter)
	if err != nil {
		return nil, h.mapError("ListLogs", err)
	}

	reply := &LogsReply{Logs: make([]LogView, 0, len(entries))}
	for _, e := range entries {
		reply.Logs = append(reply.Logs, newLogView(e))
	}
	return reply, nil
}

func (h *GRPCHandler) mapError(method string, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "item not found")
	case errors.Is(err, service.ErrOutOfStock):
		return status.Error(codes.FailedPrecondition, "item out of stock")
	case errors.Is(err, service.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		h.logger.Error("grpc call failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

const ledgerServiceName = "stockledger.Ledger"

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ledgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Assign", LedgerServer.Assign),
		unaryMethod("Return", LedgerServer.Return),
		unaryMethod("ListItems", LedgerServer.ListItems),
		unaryMethod("ListLogs", LedgerServer.ListLogs),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockledger.json",
}

func unaryMethod[Req, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ledgerServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LedgerClient calls a remote LedgerServer.
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) Assign(ctx context.Context, in *AssignMessage, opts ...grpc.CallOption) (*TransitionReply, error) {
	out := new(TransitionReply)
	if err := c.invoke(ctx, "Assign", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Return(ctx context.Context, in *ReturnMessage, opts ...grpc.CallOption) (*TransitionReply, error) {
	out := new(TransitionReply)
	if err := c.invoke(ctx, "Return", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListItems(ctx context.Context, in *ListItemsMessage, opts ...grpc.CallOption) (*ItemsReply, error) {
	out := new(ItemsReply)
	if err := c.invoke(ctx, "ListItems", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListLogs(ctx context.Context, in *ListLogsMessage, opts ...grpc.CallOption) (*LogsReply, error) {
	out := new(LogsReply)
	if err := c.invoke(ctx, "ListLogs", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ledgerServiceName+"/"+method, in, out, opts...)
}
