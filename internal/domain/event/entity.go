package event

import "time"

// Event はイベントエンティティを表す
type Event struct {
	ID             string
	Title          string
	Description    string
	Location       string
	Date           time.Time
	Price          int // 最小通貨単位
	TotalSeats     int
	AvailableSeats int
	ImageURL       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int // 楽観的ロック用（管理者編集）
}

// NewEvent は新しいイベントを作成する
// 空席数は総座席数と同じ値で初期化される
func NewEvent(title, description, location string, date time.Time, price, totalSeats int) *Event {
	now := time.Now()
	return &Event{
		Title:          title,
		Description:    description,
		Location:       location,
		Date:           date,
		Price:          price,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        0,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Title == "" {
		return ErrEventTitleRequired
	}
	if e.TotalSeats <= 0 {
		return ErrInvalidTotalSeats
	}
	if e.Price < 0 {
		return ErrInvalidPrice
	}
	if e.AvailableSeats < 0 || e.AvailableSeats > e.TotalSeats {
		return ErrInvalidAvailableSeats
	}
	return nil
}

// SoldSeats は販売済み座席数を返す
func (e *Event) SoldSeats() int {
	return e.TotalSeats - e.AvailableSeats
}

// ApplyMetadataUpdate は管理者編集をエンティティに適用する
// 総座席数の変更は空席数に同じ差分で反映される
// 販売済み座席数を下回る縮小は拒否する
func (e *Event) ApplyMetadataUpdate(title, description, location string, date time.Time, price, totalSeats int) error {
	if totalSeats < e.SoldSeats() {
		return ErrTotalSeatsBelowSold
	}
	e.AvailableSeats += totalSeats - e.TotalSeats
	e.TotalSeats = totalSeats
	e.Title = title
	e.Description = description
	e.Location = location
	e.Date = date
	e.Price = price
	e.UpdatedAt = time.Now()
	return e.Validate()
}

// Filter はイベント一覧の検索条件を表す
// ゼロ値のフィールドは「条件なし」を意味する
type Filter struct {
	Search   string     // タイトルまたは説明の部分一致（大文字小文字を区別しない）
	Location string     // 場所の部分一致
	Date     *time.Time // 開催日（時刻は無視して日付のみ比較）
}
