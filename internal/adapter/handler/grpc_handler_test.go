package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) *LedgerClient {
	t.Helper()

	l := newTestLedger(t)
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewGRPCHandler(l.ledger, zaptest.NewLogger(t)).Register(srv)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewLedgerClient(conn)
}

func TestGRPCAssignAndReturn(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	reply, err := client.Assign(ctx, &AssignMessage{StockItemID: 1, AssigneeUserID: 3, Reason: "new hire"})
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, 4, reply.Item.Quantity)
	assert.Equal(t, "assigned", reply.Item.Status)

	reply, err = client.Return(ctx, &ReturnMessage{ItemID: 1, Reason: "left company", Condition: "good"})
	require.NoError(t, err)
	assert.Equal(t, 5, reply.Item.Quantity)
	assert.Equal(t, "available", reply.Item.Status)

	logs, err := client.ListLogs(ctx, &ListLogsMessage{})
	require.NoError(t, err)
	require.Len(t, logs.Logs, 2)
	assert.Equal(t, "assign", logs.Logs[0].Action)
	assert.Equal(t, "return", logs.Logs[1].Action)
	assert.Equal(t, "good", logs.Logs[1].Details.Condition)
}

func TestGRPCErrorCodes(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Assign(ctx, &AssignMessage{StockItemID: 2, AssigneeUserID: 3})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.Assign(ctx, &AssignMessage{StockItemID: 99, AssigneeUserID: 3})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Return(ctx, &ReturnMessage{ItemID: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ListLogs(ctx, &ListLogsMessage{Action: "mark_faulty"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req := &AssignMessage{StockItemID: 1, AssigneeUserID: 3, RequestID: "req-7"}
	_, err = client.Assign(ctx, req)
	require.NoError(t, err)
	_, err = client.Assign(ctx, req)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGRPCListItems(t *testing.T) {
	client := newTestClient(t)

	reply, err := client.ListItems(context.Background(), &ListItemsMessage{DepartmentID: 1})
	require.NoError(t, err)
	require.Len(t, reply.Items, 1)
	assert.Equal(t, "Wireless Mouse", reply.Items[0].Name)
}
