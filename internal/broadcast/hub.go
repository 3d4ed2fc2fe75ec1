package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// SeatUpdate は座席数更新の通知メッセージ
// 差分ではなく絶対値を運ぶため、重複・順序入れ替わりがあっても
// 最後に受信した値を適用すれば購読者の表示は正しくなる
type SeatUpdate struct {
	EventID        string `json:"event_id"`
	AvailableSeats int    `json:"available_seats"`
}

// AllEvents は全イベントの更新を購読するための購読キー
const AllEvents = ""

// Subscriber は1つの接続に対応する購読者
type Subscriber struct {
	id      string
	eventID string
	ch      chan SeatUpdate
}

// Updates は購読者への配信チャネルを返す
func (s *Subscriber) Updates() <-chan SeatUpdate {
	return s.ch
}

// Hub はイベントIDをキーとする購読者レジストリ
// Subscribe / Unsubscribe / Publish は並行に呼び出せる
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscriber // eventID -> subscriberID -> subscriber
	buffer      int
	closed      bool
}

// NewHub は新しいHubを作成する
// buffer は購読者ごとの配信バッファ数
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 8
	}
	return &Hub{
		subscribers: make(map[string]map[string]*Subscriber),
		buffer:      buffer,
	}
}

// Subscribe は指定イベントの購読者を登録する
// eventID に AllEvents を渡すと全イベントの更新を受信する
func (h *Hub) Subscribe(eventID string) *Subscriber {
	sub := &Subscriber{
		id:      uuid.New().String(),
		eventID: eventID,
		ch:      make(chan SeatUpdate, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	if h.subscribers[eventID] == nil {
		h.subscribers[eventID] = make(map[string]*Subscriber)
	}
	h.subscribers[eventID][sub.id] = sub
	return sub
}

// Unsubscribe は購読者を登録解除する
// 接続クローズ時に必ず呼び出すこと
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.eventID]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.subscribers, sub.eventID)
	}
	close(sub.ch)
}

// Publish は更新を該当イベントの購読者と全イベント購読者に配信する
// 配信はベストエフォートであり、バッファが埋まっている購読者への
// 送信は破棄される（次回のフル取得で補正される）
func (h *Hub) Publish(update SeatUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	h.deliver(h.subscribers[update.EventID], update)
	if update.EventID != AllEvents {
		h.deliver(h.subscribers[AllEvents], update)
	}
}

func (h *Hub) deliver(subs map[string]*Subscriber, update SeatUpdate) {
	for _, sub := range subs {
		select {
		case sub.ch <- update:
		default:
			// 受信が追いつかない購読者には送らない
		}
	}
}

// SubscriberCount は現在の購読者数を返す
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}

// Close は全購読者を切断してHubを停止する
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	h.subscribers = make(map[string]map[string]*Subscriber)
}
