//go:build integration

package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/testutil"
)

func TestIntegrationPublisher_XAdd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	opt, err := redis.ParseURL(testutil.RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	pub := NewPublisher(client, "test:events", slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ev, err := PurchaseSettledEvent(&model.Transaction{ID: "01TXN", BuyerID: "b", APIID: "01API", Amount: 50})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if _, err := pub.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	msgs, err := client.XRange(ctx, "test:events", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("stream length = %d, want 1", len(msgs))
	}
	if msgs[0].Values["type"] != TypePurchaseSettled {
		t.Errorf("type = %v", msgs[0].Values["type"])
	}

	var got Event
	if err := json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.ID != ev.ID {
		t.Errorf("event id = %q, want %q", got.ID, ev.ID)
	}
}
