package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

// RedisBridge は座席数更新をRedisのPub/Sub経由で配信する
// 自インスタンスを含む全インスタンスが同じチャネルを購読するため、
// ローカルHubへの配信は購読ループ側で一元的に行われる
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

// NewRedisBridge は新しいRedisBridgeを作成する
func NewRedisBridge(client *redis.Client, channel string, hub *Hub) *RedisBridge {
	return &RedisBridge{client: client, channel: channel, hub: hub}
}

// Publish は更新をRedisチャネルに発行する
// Redisが利用できない場合はローカルHubへ直接配信してエラーを返す
// （配信はベストエフォートであり、呼び出し元は失敗をログに残すだけでよい）
func (b *RedisBridge) Publish(ctx context.Context, eventID string, availableSeats int) error {
	update := SeatUpdate{EventID: eventID, AvailableSeats: availableSeats}

	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("座席数更新のエンコードに失敗: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		// Redis断でもローカル購読者への配信は継続する
		b.hub.Publish(update)
		return fmt.Errorf("座席数更新の発行に失敗: %w", err)
	}
	return nil
}

// Run はRedisチャネルを購読し、受信した更新をローカルHubへ配信する
// ctx のキャンセルで停止する。main から goroutine で起動すること
func (b *RedisBridge) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	logger.Info("座席数更新の購読を開始", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			logger.Info("座席数更新の購読を停止")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var update SeatUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				logger.Warn("座席数更新のデコードに失敗", zap.Error(err))
				continue
			}
			b.hub.Publish(update)
		}
	}
}
