package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound       = errors.New("予約が見つかりません")
	ErrInsufficientCapacity  = errors.New("空席数が不足しています")
	ErrEventIDRequired       = errors.New("イベントIDは必須です")
	ErrCustomerNameRequired  = errors.New("氏名は必須です")
	ErrCustomerEmailRequired = errors.New("メールアドレスは必須です")
	ErrInvalidQuantity       = errors.New("枚数は1以上である必要があります")
)
