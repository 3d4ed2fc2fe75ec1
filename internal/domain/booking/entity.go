package booking

import (
	"strings"
	"time"
)

// Booking は予約エンティティを表す
// コミット後は不変であり、更新・削除は行われない
type Booking struct {
	ID          string
	EventID     string
	Name        string
	Email       string
	Mobile      string
	Quantity    int
	TotalAmount int // 予約時点の価格スナップショット（数量 × 単価）
	CreatedAt   time.Time
}

// NewBooking は新しい予約を作成する
// totalAmount は呼び出し側がロック下で読んだ価格から計算して渡す
func NewBooking(eventID, name, email, mobile string, quantity, totalAmount int) *Booking {
	return &Booking{
		EventID:     eventID,
		Name:        name,
		Email:       email,
		Mobile:      mobile,
		Quantity:    quantity,
		TotalAmount: totalAmount,
		CreatedAt:   time.Now(),
	}
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.EventID == "" {
		return ErrEventIDRequired
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrCustomerNameRequired
	}
	if b.Email == "" {
		return ErrCustomerEmailRequired
	}
	if b.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
