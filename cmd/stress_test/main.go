package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/deptstock/stock-ledger/internal/adapter/handler"
	"github.com/deptstock/stock-ledger/internal/logger"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "ledger gRPC address")
	itemID := flag.Int64("item", 1, "stock item to assign")
	actorID := flag.Int64("actor", 1, "assignee user id")
	totalRequests := flag.Int("requests", 50, "concurrent assign requests")
	flag.Parse()

	log, err := logger.New("info", true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal("failed to dial ledger", zap.Error(err))
	}
	defer conn.Close()
	client := handler.NewLedgerClient(conn)

	initialStock, err := quantityOf(ctx, client, *itemID)
	if err != nil {
		log.Fatal("failed to read item", zap.Error(err))
	}

	// Counters
	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.Assign(ctx, &handler.AssignMessage{
				StockItemID:    *itemID,
				AssigneeUserID: *actorID,
				Reason:         "stress test",
				RequestID:      uuid.NewString(),
			})
			switch status.Code(err) {
			case codes.OK:
				successCount.Add(1)
			case codes.FailedPrecondition:
				outOfStockCount.Add(1)
			default:
				errorCount.Add(1)
				log.Warn("assign failed", zap.Error(err))
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	finalStock, err := quantityOf(ctx, client, *itemID)
	if err != nil {
		log.Fatal("failed to read item", zap.Error(err))
	}

	success := int(successCount.Load())
	expected := min(initialStock, *totalRequests)

	log.Info("stress test finished",
		zap.Int("initial_stock", initialStock),
		zap.Int("requests", *totalRequests),
		zap.Int("assigned", success),
		zap.Int32("out_of_stock", outOfStockCount.Load()),
		zap.Int32("errors", errorCount.Load()),
		zap.Int("final_stock", finalStock),
		zap.Duration("elapsed", elapsed),
	)

	if success != expected || finalStock != initialStock-success {
		log.Error("FAIL: lost or phantom updates",
			zap.Int("expected_assigned", expected),
			zap.Int("expected_final_stock", initialStock-success),
		)
		os.Exit(1)
	}
	log.Info("PASS: every unit assigned exactly once")
}

func quantityOf(ctx context.Context, client *handler.LedgerClient, itemID int64) (int, error) {
	reply, err := client.ListItems(ctx, &handler.ListItemsMessage{})
	if err != nil {
		return 0, err
	}
	for _, item := range reply.Items {
		if item.ID == itemID {
			return item.Quantity, nil
		}
	}
	return 0, fmt.Errorf("item %d not found", itemID)
}
