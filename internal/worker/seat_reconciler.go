package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

// ConsistencyChecker は空席数の整合性を検証するインターフェース
type ConsistencyChecker interface {
	VerifySeatConsistency(ctx context.Context) ([]application.SeatCountDrift, error)
}

// SeatReconciler は空席数の不整合を定期的に検出するワーカー
// 検出した不整合はログとメトリクスに報告するのみで、修復は行わない
type SeatReconciler struct {
	bookingService ConsistencyChecker
	interval       time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewSeatReconciler は新しいリコンサイラーを作成
func NewSeatReconciler(bs ConsistencyChecker, interval time.Duration) *SeatReconciler {
	return &SeatReconciler{
		bookingService: bs,
		interval:       interval,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start はリコンサイラーを開始
func (r *SeatReconciler) Start(ctx context.Context) {
	logger.Info("空席数リコンサイラー開始", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("空席数リコンサイラー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("空席数リコンサイラー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// Stop はリコンサイラーを停止
func (r *SeatReconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reconcile は全イベントの空席数を検証して不整合を報告
func (r *SeatReconciler) reconcile(ctx context.Context) {
	log := logger.Get()
	log.Debug("空席数の整合性チェック開始")

	drifts, err := r.bookingService.VerifySeatConsistency(ctx)
	if err != nil {
		log.Error("空席数の整合性チェック失敗", zap.Error(err))
		return
	}

	if len(drifts) == 0 {
		log.Debug("空席数の不整合なし")
		return
	}

	for _, d := range drifts {
		log.Warn("空席数の不整合を検出",
			zap.String("event_id", d.EventID),
			zap.Int("expected", d.Expected),
			zap.Int("available_seats", d.AvailableSeats),
		)
	}
}
