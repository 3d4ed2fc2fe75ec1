package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound          = errors.New("イベントが見つかりません")
	ErrEventTitleRequired     = errors.New("イベント名は必須です")
	ErrInvalidTotalSeats      = errors.New("座席数は1以上である必要があります")
	ErrInvalidPrice           = errors.New("価格は0以上である必要があります")
	ErrInvalidAvailableSeats  = errors.New("空席数は0以上かつ総座席数以下である必要があります")
	ErrTotalSeatsBelowSold    = errors.New("総座席数を販売済み座席数より少なくすることはできません")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
)
