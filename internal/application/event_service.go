package application

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

// ImageStore はイベント画像のブロブストアのインターフェース
// 保存に成功すると配信URLを返す
type ImageStore interface {
	Save(filename string, r io.Reader) (string, error)
	Delete(imageURL string) error
}

// SeatCountCache はイベントごとの空席数キャッシュのインターフェース
type SeatCountCache interface {
	SetAvailableSeats(ctx context.Context, eventID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

type EventService struct {
	eventRepo  event.Repository
	imageStore ImageStore
	seatCache  SeatCountCache
}

func NewEventService(eventRepo event.Repository, imageStore ImageStore, seatCache SeatCountCache) *EventService {
	return &EventService{eventRepo: eventRepo, imageStore: imageStore, seatCache: seatCache}
}

// ImageUpload はマルチパートで受け取った画像ファイル
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

type CreateEventInput struct {
	Title       string
	Description string
	Location    string
	Date        time.Time
	Price       int
	TotalSeats  int
	Image       *ImageUpload // 省略可
	ImageURL    string       // ファイルの代わりに外部URLを渡す場合
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Title, input.Description, input.Location, input.Date, input.Price, input.TotalSeats)

	if input.Image != nil {
		url, err := s.imageStore.Save(input.Image.Filename, input.Image.Reader)
		if err != nil {
			return nil, fmt.Errorf("画像の保存に失敗しました: %w", err)
		}
		e.ImageURL = url
	} else {
		e.ImageURL = input.ImageURL
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		// 作成に失敗した場合は保存済みの画像を残さない
		if input.Image != nil {
			if delErr := s.imageStore.Delete(e.ImageURL); delErr != nil {
				logger.Warn("孤立画像の削除に失敗", zap.Error(delErr))
			}
		}
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

// ListEvents は検索条件に一致するイベントを開催日の昇順で返す
func (s *EventService) ListEvents(ctx context.Context, filter event.Filter) ([]*event.Event, error) {
	return s.eventRepo.List(ctx, filter)
}

// ListLocations は使用中の場所の一覧を返す
func (s *EventService) ListLocations(ctx context.Context) ([]string, error) {
	return s.eventRepo.ListLocations(ctx)
}

type UpdateEventInput struct {
	ID          string
	Title       string
	Description string
	Location    string
	Date        time.Time
	Price       int
	TotalSeats  int
	Image       *ImageUpload // 新しい画像で置き換える場合
	ImageURL    string       // ファイルの代わりに外部URLを渡す場合
}

// UpdateEvent はイベントのメタデータを更新する
// 空席数は絶対値では書き戻さず、総座席数変更の差分のみをDB側で相対的に適用する
// （予約の減算は行ロック下の別経路で行われ、管理者更新がそれを巻き戻すことはない）
func (s *EventService) UpdateEvent(ctx context.Context, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	oldImageURL := e.ImageURL
	if input.Image != nil {
		url, saveErr := s.imageStore.Save(input.Image.Filename, input.Image.Reader)
		if saveErr != nil {
			return nil, fmt.Errorf("画像の保存に失敗しました: %w", saveErr)
		}
		e.ImageURL = url
	} else if input.ImageURL != "" {
		e.ImageURL = input.ImageURL
	}

	seatDelta := input.TotalSeats - e.TotalSeats
	if err := e.ApplyMetadataUpdate(input.Title, input.Description, input.Location, input.Date, input.Price, input.TotalSeats); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, e, seatDelta); err != nil {
		return nil, err
	}

	if seatDelta != 0 && s.seatCache != nil {
		if cacheErr := s.seatCache.Invalidate(ctx, e.ID); cacheErr != nil {
			logger.Warn("座席キャッシュの無効化に失敗", zap.String("event_id", e.ID), zap.Error(cacheErr))
		}
	}

	if input.Image != nil && oldImageURL != "" && oldImageURL != e.ImageURL {
		if delErr := s.imageStore.Delete(oldImageURL); delErr != nil {
			logger.Warn("旧画像の削除に失敗", zap.String("url", oldImageURL), zap.Error(delErr))
		}
	}
	return e, nil
}

// DeleteEvent はイベントを削除する
// 紐づく予約はDBのカスケードで削除され、画像とキャッシュもベストエフォートで片付ける
func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return err
	}

	if e.ImageURL != "" {
		if delErr := s.imageStore.Delete(e.ImageURL); delErr != nil {
			logger.Warn("画像の削除に失敗", zap.String("event_id", id), zap.Error(delErr))
		}
	}
	if s.seatCache != nil {
		if cacheErr := s.seatCache.Invalidate(ctx, id); cacheErr != nil {
			logger.Warn("座席キャッシュの無効化に失敗", zap.String("event_id", id), zap.Error(cacheErr))
		}
	}
	return nil
}
