package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-ticket-booking/internal/api"
	"github.com/sanosuguru/go-ticket-booking/internal/api/handler"
)

// createTestEvent はイベントを作成してレスポンスを返す
func createTestEvent(t *testing.T, server *TestServer, title string, totalSeats int) handler.EventResponse {
	t.Helper()

	rec := server.RequestForm("POST", "/api/v1/events", map[string]string{
		"title":       title,
		"description": "E2Eテスト用イベント",
		"location":    "テスト会場",
		"date":        time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"price":       "5000",
		"total_seats": fmt.Sprintf("%d", totalSeats),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestE2E_HealthCheck(t *testing.T) {
	server := getTestServer(t)

	rec := server.Request("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestE2E_BookingFlow(t *testing.T) {
	server := getTestServer(t)

	// イベント作成
	ev := createTestEvent(t, server, "E2Eジャズナイト", 100)
	assert.Equal(t, 100, ev.AvailableSeats)

	// 予約作成
	rec := server.Request("POST", "/api/v1/bookings", map[string]interface{}{
		"event_id": ev.ID,
		"name":     "山田太郎",
		"email":    "taro@example.com",
		"mobile":   "090-1234-5678",
		"quantity": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created handler.CreateBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.BookingID)
	assert.Equal(t, 98, created.AvailableSeats)

	// イベント詳細に減算が反映されている
	rec = server.Request("GET", "/api/v1/events/"+ev.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, 98, fetched.AvailableSeats)

	// 予約詳細の取得（価格スナップショット）
	rec = server.Request("GET", "/api/v1/bookings/"+created.BookingID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var b handler.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, 2, b.Quantity)
	assert.Equal(t, 10000, b.TotalAmount)

	// イベントの予約一覧
	rec = server.Request("GET", "/api/v1/events/"+ev.ID+"/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var bookings []handler.BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bookings))
	assert.Len(t, bookings, 1)
}

func TestE2E_BookingInsufficientCapacity(t *testing.T) {
	server := getTestServer(t)

	ev := createTestEvent(t, server, "小規模イベント", 3)

	// 空席を超える枚数は拒否される
	rec := server.Request("POST", "/api/v1/bookings", map[string]interface{}{
		"event_id": ev.ID,
		"name":     "山田太郎",
		"email":    "taro@example.com",
		"quantity": 5,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_capacity", resp.Code)

	// 空席数は変化していない
	rec = server.Request("GET", "/api/v1/events/"+ev.ID, nil)
	var fetched handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, 3, fetched.AvailableSeats)
}

// TestE2E_ConcurrentBooking は最後の1席への並行予約が直列化されることを検証する
func TestE2E_ConcurrentBooking(t *testing.T) {
	server := getTestServer(t)

	ev := createTestEvent(t, server, "最後の1席", 1)

	const attempts = 5
	results := make([]int, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := server.Request("POST", "/api/v1/bookings", map[string]interface{}{
				"event_id": ev.ID,
				"name":     fmt.Sprintf("購入者%d", n),
				"email":    fmt.Sprintf("user%d@example.com", n),
				"quantity": 1,
			})
			results[n] = rec.Code
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, code := range results {
		if code == http.StatusCreated {
			succeeded++
		} else {
			assert.Equal(t, http.StatusBadRequest, code)
		}
	}
	// 行ロックにより成立するのはちょうど1件
	assert.Equal(t, 1, succeeded)

	rec := server.Request("GET", "/api/v1/events/"+ev.ID, nil)
	var fetched handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, 0, fetched.AvailableSeats)
}

func TestE2E_SeatUpdateBroadcast(t *testing.T) {
	server := getTestServer(t)

	ev := createTestEvent(t, server, "配信テスト", 50)

	// ローカルHubを直接購読（SSEハンドラーと同じ経路）
	sub := testHub.Subscribe(ev.ID)
	defer testHub.Unsubscribe(sub)

	rec := server.Request("POST", "/api/v1/bookings", map[string]interface{}{
		"event_id": ev.ID,
		"name":     "山田太郎",
		"email":    "taro@example.com",
		"quantity": 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Redis経由で再注入された更新を受信する
	select {
	case update := <-sub.Updates():
		assert.Equal(t, ev.ID, update.EventID)
		assert.Equal(t, 46, update.AvailableSeats)
	case <-time.After(5 * time.Second):
		t.Fatal("座席数更新が配信されなかった")
	}
}

func TestE2E_EventFilters(t *testing.T) {
	server := getTestServer(t)

	createTestEvent(t, server, "ジャズナイト", 100)
	createTestEvent(t, server, "ロックフェス", 100)

	// タイトルの部分一致（大文字小文字を区別しない）
	rec := server.Request("GET", "/api/v1/events?search=ジャズ", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events []handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "ジャズナイト", events[0].Title)

	// 開催日（当日は該当なし、翌日は2件）
	rec = server.Request("GET", "/api/v1/events?date="+time.Now().UTC().Format("2006-01-02"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Empty(t, events)

	rec = server.Request("GET", "/api/v1/events?date="+time.Now().Add(24*time.Hour).UTC().Format("2006-01-02"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)

	// 場所一覧
	rec = server.Request("GET", "/api/v1/events/locations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var locations []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locations))
	assert.Contains(t, locations, "テスト会場")
}

func TestE2E_EventUpdateAndDelete(t *testing.T) {
	server := getTestServer(t)

	ev := createTestEvent(t, server, "更新前イベント", 100)

	// 総座席数の拡大
	rec := server.RequestForm("PUT", "/api/v1/events/"+ev.ID, map[string]string{
		"title":       "更新後イベント",
		"location":    "テスト会場",
		"date":        time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"price":       "5000",
		"total_seats": "150",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated handler.EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "更新後イベント", updated.Title)
	assert.Equal(t, 150, updated.TotalSeats)
	assert.Equal(t, 150, updated.AvailableSeats)

	// 予約を入れてから削除（カスケード）
	rec = server.Request("POST", "/api/v1/bookings", map[string]interface{}{
		"event_id": ev.ID,
		"name":     "山田太郎",
		"email":    "taro@example.com",
		"quantity": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created handler.CreateBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, 149, created.AvailableSeats)

	// 予約後のメタデータ更新で予約分の減算が巻き戻らないこと
	rec = server.RequestForm("PUT", "/api/v1/events/"+ev.ID, map[string]string{
		"title":       "再改題イベント",
		"location":    "テスト会場",
		"date":        time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"price":       "5000",
		"total_seats": "150",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 149, updated.AvailableSeats)

	rec = server.Request("DELETE", "/api/v1/events/"+ev.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// イベントも予約も消えている
	rec = server.Request("GET", "/api/v1/events/"+ev.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = server.Request("GET", "/api/v1/bookings/"+created.BookingID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
