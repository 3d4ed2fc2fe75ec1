package event

import (
	"context"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// GetByIDForUpdate はイベント行を排他ロックして取得する（トランザクション必須）
	// 同一イベントへの並行予約はこのロックで直列化される
	GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Event, error)

	// List は検索条件に一致するイベント一覧を開催日の昇順で取得する
	List(ctx context.Context, filter Filter) ([]*Event, error)

	// ListLocations は使用中の場所の一覧を重複なしで取得する
	ListLocations(ctx context.Context) ([]string, error)

	// Update はイベントのメタデータを更新する（楽観的ロック）
	// 空席数は絶対値では書かず、総座席数変更の差分（seatDelta）を相対的に適用する
	// 並行する予約の減算と競合しても、コミット済みの減算を巻き戻さない
	Update(ctx context.Context, event *Event, seatDelta int) error

	// DecrementAvailableSeats は空席数を減算する（トランザクション必須）
	DecrementAvailableSeats(ctx context.Context, tx transaction.Tx, id string, quantity int) error

	// Delete はイベントを削除する（紐づく予約もカスケード削除される）
	Delete(ctx context.Context, id string) error
}
