package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
)

// SeatUpdatePublisher は予約コミット後の座席数更新を配信するインターフェース
// 配信はベストエフォートであり、失敗しても予約は成立したままになる
type SeatUpdatePublisher interface {
	Publish(ctx context.Context, eventID string, availableSeats int) error
}

// キャッシュする空席数のTTL
const seatCacheTTL = 5 * time.Minute

type BookingService struct {
	txManager   transaction.Manager
	bookingRepo booking.Repository
	eventRepo   event.Repository
	publisher   SeatUpdatePublisher
	seatCache   SeatCountCache
	metrics     *metrics.Metrics
}

func NewBookingService(
	txManager transaction.Manager,
	bookingRepo booking.Repository,
	eventRepo event.Repository,
	publisher SeatUpdatePublisher,
	seatCache SeatCountCache,
	m *metrics.Metrics,
) *BookingService {
	return &BookingService{
		txManager:   txManager,
		bookingRepo: bookingRepo,
		eventRepo:   eventRepo,
		publisher:   publisher,
		seatCache:   seatCache,
		metrics:     m,
	}
}

type CreateBookingInput struct {
	EventID  string
	Name     string
	Email    string
	Mobile   string
	Quantity int
}

// CreateBookingOutput は予約成立時の結果
type CreateBookingOutput struct {
	Booking        *booking.Booking
	AvailableSeats int // コミット時点の新しい空席数
}

// CreateBooking は予約トランザクションを実行する
//
// イベント行を SELECT ... FOR UPDATE でロックした上で空席数を再確認し、
// 予約の挿入と空席数の減算を同一トランザクションでコミットする。
// 同一イベントへの並行予約はこの行ロックで直列化されるため、
// コミット済み予約枚数の合計が総座席数を超えることはない。
// 一覧・詳細取得時に空席を見ていたことは確保の根拠にならない。
//
// 座席数更新の配信・キャッシュ更新はコミット成功後にのみ行われ、
// その失敗は予約のレスポンスに影響しない。
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingOutput, error) {
	b := booking.NewBooking(input.EventID, input.Name, input.Email, input.Mobile, input.Quantity, 0)
	if err := b.Validate(); err != nil {
		s.countBooking("validation_error")
		return nil, err
	}

	start := time.Now()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// 行ロック下で空席数と価格を読む
	// ロック待ちのタイムアウトは ctx で制御され、失敗として扱われる
	ev, err := s.eventRepo.GetByIDForUpdate(ctx, tx, input.EventID)
	if err != nil {
		s.countBookingError(err)
		return nil, err
	}

	// ロック下での再確認が唯一の決定的なチェック
	if ev.AvailableSeats < input.Quantity {
		s.countBooking("insufficient_capacity")
		return nil, booking.ErrInsufficientCapacity
	}

	// 価格スナップショット（同じロック下で読んだ値なので価格編集とは競合しない）
	b.TotalAmount = input.Quantity * ev.Price

	if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
		s.countBooking("error")
		return nil, err
	}
	if err := s.eventRepo.DecrementAvailableSeats(ctx, tx, ev.ID, input.Quantity); err != nil {
		s.countBooking("error")
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.countBooking("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	if s.metrics != nil {
		s.metrics.BookingDuration.Observe(time.Since(start).Seconds())
	}
	s.countBooking("success")

	newAvailable := ev.AvailableSeats - input.Quantity
	s.afterCommit(ctx, ev.ID, newAvailable)

	return &CreateBookingOutput{Booking: b, AvailableSeats: newAvailable}, nil
}

// afterCommit はコミット後のベストエフォート処理を行う
// 呼び出し元のレスポンスをブロックしないよう別goroutineで実行する
func (s *BookingService) afterCommit(ctx context.Context, eventID string, availableSeats int) {
	// リクエストのキャンセルには巻き込まれないコンテキストを使う
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)

	go func() {
		defer cancel()

		if s.publisher != nil {
			if err := s.publisher.Publish(bgCtx, eventID, availableSeats); err != nil {
				logger.Error("座席数更新の配信に失敗",
					zap.String("event_id", eventID),
					zap.Int("available_seats", availableSeats),
					zap.Error(err),
				)
			} else if s.metrics != nil {
				s.metrics.SeatUpdatesPublished.Inc()
			}
		}

		if s.seatCache != nil {
			if err := s.seatCache.SetAvailableSeats(bgCtx, eventID, availableSeats, seatCacheTTL); err != nil {
				logger.Warn("座席キャッシュの更新に失敗",
					zap.String("event_id", eventID),
					zap.Error(err),
				)
			}
		}
	}()
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *BookingService) ListEventBookings(ctx context.Context, eventID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.GetByEventID(ctx, eventID, limit, offset)
}

// SeatCountDrift は空席数の不整合を表す
type SeatCountDrift struct {
	EventID        string
	Expected       int // total_seats - コミット済み予約枚数
	AvailableSeats int // events行の実際の値
}

// VerifySeatConsistency は全イベントについて
// available_seats == total_seats - SUM(予約枚数) を検証する
// 不整合は報告のみで修復は行わない（修復は運用判断）
func (s *BookingService) VerifySeatConsistency(ctx context.Context) ([]SeatCountDrift, error) {
	events, err := s.eventRepo.List(ctx, event.Filter{})
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗: %w", err)
	}

	var drifts []SeatCountDrift
	for _, ev := range events {
		booked, err := s.bookingRepo.SumQuantityByEventID(ctx, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("予約枚数の集計に失敗: %w", err)
		}
		expected := ev.TotalSeats - booked
		if expected != ev.AvailableSeats {
			drifts = append(drifts, SeatCountDrift{
				EventID:        ev.ID,
				Expected:       expected,
				AvailableSeats: ev.AvailableSeats,
			})
			if s.metrics != nil {
				s.metrics.SeatCountDrift.Inc()
			}
		}
	}
	return drifts, nil
}

func (s *BookingService) countBooking(status string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(status).Inc()
	}
}

func (s *BookingService) countBookingError(err error) {
	switch {
	case errors.Is(err, event.ErrEventNotFound):
		s.countBooking("not_found")
	default:
		s.countBooking("error")
	}
}
