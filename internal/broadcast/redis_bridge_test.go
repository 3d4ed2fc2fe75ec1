package broadcast

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisBridge_PublishAndRun(t *testing.T) {
	client := setupTestRedis(t)

	hub := NewHub(8)
	defer hub.Close()

	bridge := NewRedisBridge(client, "seat_updates_test", hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	// 購読ループの確立を待つ
	require.Eventually(t, func() bool {
		channels, err := client.PubSubChannels(context.Background(), "seat_updates_test").Result()
		return err == nil && len(channels) > 0
	}, 3*time.Second, 50*time.Millisecond)

	sub := hub.Subscribe("event-1")
	defer hub.Unsubscribe(sub)

	require.NoError(t, bridge.Publish(context.Background(), "event-1", 42))

	// Redis経由でローカルHubに再注入される
	select {
	case update := <-sub.Updates():
		assert.Equal(t, "event-1", update.EventID)
		assert.Equal(t, 42, update.AvailableSeats)
	case <-time.After(3 * time.Second):
		t.Fatal("更新が配信されなかった")
	}
}

func TestRedisBridge_PublishFallsBackWhenRedisDown(t *testing.T) {
	// 接続できないクライアントを使う
	client := goredis.NewClient(&goredis.Options{
		Addr:        "localhost:1",
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	hub := NewHub(8)
	defer hub.Close()

	bridge := NewRedisBridge(client, "seat_updates_test", hub)

	sub := hub.Subscribe("event-1")
	defer hub.Unsubscribe(sub)

	// 発行は失敗するがローカルHubへはフォールバック配信される
	err := bridge.Publish(context.Background(), "event-1", 7)
	require.Error(t, err)

	select {
	case update := <-sub.Updates():
		assert.Equal(t, 7, update.AvailableSeats)
	case <-time.After(1 * time.Second):
		t.Fatal("フォールバック配信がなかった")
	}
}
