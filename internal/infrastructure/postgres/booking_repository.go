package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

type bookingRow struct {
	ID          string    `db:"id"`
	EventID     string    `db:"event_id"`
	Name        string    `db:"name"`
	Email       string    `db:"email"`
	Mobile      *string   `db:"mobile"`
	Quantity    int       `db:"quantity"`
	TotalAmount int       `db:"total_amount"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	var mobile string
	if r.Mobile != nil {
		mobile = *r.Mobile
	}
	return &booking.Booking{
		ID:          r.ID,
		EventID:     r.EventID,
		Name:        r.Name,
		Email:       r.Email,
		Mobile:      mobile,
		Quantity:    r.Quantity,
		TotalAmount: r.TotalAmount,
		CreatedAt:   r.CreatedAt,
	}
}

// BookingRepository は予約リポジトリのPostgreSQL実装
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository はBookingRepositoryを作成する
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create は新しい予約を作成する
// イベント行をロックしたトランザクションと同じ tx を渡すこと
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションの型が不正です")
	}

	query := `
		INSERT INTO bookings (event_id, name, email, mobile, quantity, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := sqlxTx.QueryRowContext(ctx, query,
		b.EventID, b.Name, b.Email, nullable(b.Mobile), b.Quantity, b.TotalAmount, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		// 23503: 外部キー違反（イベントが存在しない）
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23503" {
			return fmt.Errorf("予約作成に失敗しました: %w", event.ErrEventNotFound)
		}
		return fmt.Errorf("予約作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDから予約を取得する
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	query := `SELECT id, event_id, name, email, mobile, quantity, total_amount, created_at FROM bookings WHERE id = $1`

	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByEventID はイベントの予約一覧を取得する
func (r *BookingRepository) GetByEventID(ctx context.Context, eventID string, limit, offset int) ([]*booking.Booking, error) {
	query := `
		SELECT id, event_id, name, email, mobile, quantity, total_amount, created_at
		FROM bookings
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, eventID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗しました: %w", err)
	}

	bookings := make([]*booking.Booking, len(rows))
	for i, row := range rows {
		bookings[i] = row.toEntity()
	}
	return bookings, nil
}

// SumQuantityByEventID はイベントのコミット済み予約枚数の合計を取得する
// 座席整合性の検証に使用する
func (r *BookingRepository) SumQuantityByEventID(ctx context.Context, eventID string) (int, error) {
	query := `SELECT COALESCE(SUM(quantity), 0) FROM bookings WHERE event_id = $1`

	var total int
	if err := r.db.GetContext(ctx, &total, query, eventID); err != nil {
		return 0, fmt.Errorf("予約枚数の集計に失敗しました: %w", err)
	}
	return total, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
