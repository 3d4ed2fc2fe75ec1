package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/broadcast"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
)

// keepAliveInterval はプロキシに接続を切られないためのコメント送出間隔
const keepAliveInterval = 30 * time.Second

// SeatCountSource は接続直後の初期表示に使う空席数の参照元
// キャッシュミスはエラーとして返してよく、その場合は初期送出を省略する
type SeatCountSource interface {
	GetAvailableSeats(ctx context.Context, eventID string) (int, error)
}

type StreamHandler struct {
	hub        *broadcast.Hub
	seatCounts SeatCountSource // nil可
	metrics    *metrics.Metrics
}

func NewStreamHandler(hub *broadcast.Hub, seatCounts SeatCountSource, m *metrics.Metrics) *StreamHandler {
	return &StreamHandler{hub: hub, seatCounts: seatCounts, metrics: m}
}

// Stream godoc
// @Summary 座席数更新ストリーム
// @Description Server-Sent Eventsで空席数の更新を配信します
// @Tags events
// @Produce text/event-stream
// @Param event_id query string false "特定イベントのみ購読する場合のイベントID"
// @Success 200 {string} string "event: seat_update\ndata: {\"event_id\":…,\"available_seats\":…}"
// @Router /events/stream [get]
func (h *StreamHandler) Stream(c echo.Context) error {
	eventID := c.QueryParam("event_id") // 空なら全イベントを購読

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	sub := h.hub.Subscribe(eventID)
	defer h.hub.Unsubscribe(sub)

	if h.metrics != nil {
		h.metrics.SSESubscribers.Inc()
		defer h.metrics.SSESubscribers.Dec()
	}

	logger.Debug("SSE購読を開始", zap.String("event_id", eventID))

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request().Context()

	// 特定イベントの購読なら、次の更新を待たずに現在の空席数を初期送出する
	// キャッシュミスや参照エラーの場合は省略し、以降の更新に任せる
	if eventID != "" && h.seatCounts != nil {
		if count, err := h.seatCounts.GetAvailableSeats(ctx, eventID); err == nil {
			if err := writeSeatUpdate(res, broadcast.SeatUpdate{EventID: eventID, AvailableSeats: count}); err != nil {
				return nil
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-sub.Updates():
			if !ok {
				// Hubがクローズされた
				return nil
			}
			if err := writeSeatUpdate(res, update); err != nil {
				return nil
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeSeatUpdate(res *echo.Response, update broadcast.SeatUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: seat_update\ndata: %s\n\n", data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
