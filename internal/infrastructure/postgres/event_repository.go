package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Description    *string   `db:"description"`
	Location       *string   `db:"location"`
	Date           time.Time `db:"date"`
	Price          int       `db:"price"`
	TotalSeats     int       `db:"total_seats"`
	AvailableSeats int       `db:"available_seats"`
	ImageURL       *string   `db:"image_url"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Version        int       `db:"version"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	var desc, location, imageURL string
	if r.Description != nil {
		desc = *r.Description
	}
	if r.Location != nil {
		location = *r.Location
	}
	if r.ImageURL != nil {
		imageURL = *r.ImageURL
	}
	return &event.Event{
		ID:             r.ID,
		Title:          r.Title,
		Description:    desc,
		Location:       location,
		Date:           r.Date,
		Price:          r.Price,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		ImageURL:       imageURL,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Version:        r.Version,
	}
}

const eventColumns = `id, title, description, location, date, price, total_seats, available_seats, image_url, created_at, updated_at, version`

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (title, description, location, date, price, total_seats, available_seats, image_url, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		e.Title, nullable(e.Description), nullable(e.Location), e.Date, e.Price,
		e.TotalSeats, e.AvailableSeats, nullable(e.ImageURL), e.CreatedAt, e.UpdatedAt, e.Version,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// GetByIDForUpdate はイベント行を SELECT ... FOR UPDATE でロックして取得する
// 同一イベントへの並行予約はここで直列化され、別イベントの予約とは競合しない
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, tx transaction.Tx, id string) (*event.Event, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, fmt.Errorf("トランザクションの型が不正です")
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	var row eventRow
	err := sqlxTx.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベントのロック取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List は検索条件に一致するイベント一覧を開催日の昇順で取得する
// 各フィルタはAND条件で合成され、未指定のフィルタは適用されない
func (r *EventRepository) List(ctx context.Context, filter event.Filter) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	args := []interface{}{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		p := strconv.Itoa(len(args))
		query += ` AND (title ILIKE $` + p + ` OR description ILIKE $` + p + `)`
	}
	if filter.Location != "" {
		args = append(args, "%"+filter.Location+"%")
		query += ` AND location ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.Date != nil {
		args = append(args, filter.Date.Format("2006-01-02"))
		query += ` AND date::date = $` + strconv.Itoa(len(args)) + `::date`
	}

	query += ` ORDER BY date ASC`

	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events, nil
}

// ListLocations は使用中の場所の一覧を重複なしで取得する
func (r *EventRepository) ListLocations(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT location FROM events WHERE location IS NOT NULL AND location <> '' ORDER BY location`

	var locations []string
	err := r.db.SelectContext(ctx, &locations, query)
	if err != nil {
		return nil, fmt.Errorf("場所一覧取得に失敗しました: %w", err)
	}
	return locations, nil
}

// Update はイベントのメタデータを更新する（楽観的ロック）
// 空席数は絶対値では書かず、総座席数変更の差分を現在値に相対的に加算する
// 並行する予約が空席数を減算していても、その減算はそのまま保たれる
func (r *EventRepository) Update(ctx context.Context, e *event.Event, seatDelta int) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, location = $3, date = $4, price = $5,
		    total_seats = $6, available_seats = available_seats + $7, image_url = $8,
		    updated_at = $9, version = version + 1
		WHERE id = $10 AND version = $11
		RETURNING available_seats
	`

	err := r.db.QueryRowContext(ctx, query,
		e.Title, nullable(e.Description), nullable(e.Location), e.Date, e.Price,
		e.TotalSeats, seatDelta, nullable(e.ImageURL), time.Now(), e.ID, e.Version,
	).Scan(&e.AvailableSeats)
	if err != nil {
		// 23514: CHECK制約違反。縮小が販売済み座席数を下回り空席数が負になった場合
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" {
			return event.ErrTotalSeatsBelowSold
		}
		if errors.Is(err, sql.ErrNoRows) {
			// 行が存在しないか、versionが進んでいる
			if _, getErr := r.GetByID(ctx, e.ID); getErr != nil {
				return getErr
			}
			return event.ErrOptimisticLockConflict
		}
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	e.Version++
	return nil
}

// DecrementAvailableSeats は空席数を減算する
// GetByIDForUpdate と同じトランザクション内で呼び出すこと
func (r *EventRepository) DecrementAvailableSeats(ctx context.Context, tx transaction.Tx, id string, quantity int) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションの型が不正です")
	}

	query := `UPDATE events SET available_seats = available_seats - $1, updated_at = $2 WHERE id = $3`

	result, err := sqlxTx.ExecContext(ctx, query, quantity, time.Now(), id)
	if err != nil {
		return fmt.Errorf("空席数の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("空席数更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// Delete はイベントを削除する
// bookings テーブルは ON DELETE CASCADE で連動して削除される
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
