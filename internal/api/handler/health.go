package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger は依存先の疎通確認のインターフェース
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc は関数をPingerとして使うためのアダプター
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler はヘルスチェックハンドラー
type HealthHandler struct {
	db    Pinger
	redis Pinger
}

// NewHealthHandler はHealthHandlerを作成する
// db / redis は nil でもよい（チェック対象から外れる）
func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check はヘルスチェックを行う
// @Summary ヘルスチェック
// @Description アプリケーションと依存先の健全性を確認する
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string)

	if h.db != nil {
		checks["postgres"] = "ok"
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = "degraded"
		}
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	})
}
