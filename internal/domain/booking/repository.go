package booking

import (
	"context"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	// イベント行のロックと同じトランザクション内で呼び出すこと
	Create(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByEventID はイベントの予約一覧を取得する
	GetByEventID(ctx context.Context, eventID string, limit, offset int) ([]*Booking, error)

	// SumQuantityByEventID はイベントのコミット済み予約枚数の合計を取得する
	SumQuantityByEventID(ctx context.Context, eventID string) (int, error)
}
