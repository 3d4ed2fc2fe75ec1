package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-ticket-booking/internal/api"
	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
)

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*application.CreateBookingOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.CreateBookingOutput), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) ListEventBookings(ctx context.Context, eventID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, eventID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func sampleBooking() *booking.Booking {
	return &booking.Booking{
		ID:          "booking-1",
		EventID:     "event-1",
		Name:        "山田太郎",
		Email:       "taro@example.com",
		Mobile:      "090-1234-5678",
		Quantity:    2,
		TotalAmount: 10000,
		CreatedAt:   time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestBookingHandler_Create(t *testing.T) {
	validBody := `{"event_id":"event-1","name":"山田太郎","email":"taro@example.com","mobile":"090-1234-5678","quantity":2}`

	t.Run("予約が成立する", func(t *testing.T) {
		e := NewTestEcho()
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, application.CreateBookingInput{
			EventID:  "event-1",
			Name:     "山田太郎",
			Email:    "taro@example.com",
			Mobile:   "090-1234-5678",
			Quantity: 2,
		}).Return(&application.CreateBookingOutput{
			Booking:        sampleBooking(),
			AvailableSeats: 118,
		}, nil)

		h := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(validBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp CreateBookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "booking-1", resp.BookingID)
		assert.Equal(t, 118, resp.AvailableSeats)
		assert.NotEmpty(t, resp.Message)
	})

	t.Run("空席不足は400とコードを返す", func(t *testing.T) {
		e := NewTestEcho()
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, booking.ErrInsufficientCapacity)

		e.POST("/api/v1/bookings", NewBookingHandler(mockService).Create)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(validBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp api.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "insufficient_capacity", resp.Code)
	})

	t.Run("必須項目の欠落は400", func(t *testing.T) {
		e := NewTestEcho()
		mockService := new(MockBookingService)

		e.POST("/api/v1/bookings", NewBookingHandler(mockService).Create)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings",
			strings.NewReader(`{"event_id":"event-1","quantity":2}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("枚数ゼロは400", func(t *testing.T) {
		e := NewTestEcho()
		mockService := new(MockBookingService)

		e.POST("/api/v1/bookings", NewBookingHandler(mockService).Create)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings",
			strings.NewReader(`{"event_id":"event-1","name":"山田太郎","email":"taro@example.com","quantity":0}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})

	t.Run("イベントが存在しない場合は404", func(t *testing.T) {
		e := NewTestEcho()
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, event.ErrEventNotFound)

		e.POST("/api/v1/bookings", NewBookingHandler(mockService).Create)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(validBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBookingHandler_GetByID(t *testing.T) {
	t.Run("取得できる", func(t *testing.T) {
		e := NewTestEcho()
		mockService := new(MockBookingService)
		mockService.On("GetBooking", mock.Anything, "booking-1").Return(sampleBooking(), nil)

		h := NewBookingHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("booking-1")

		require.NoError(t, h.GetByID(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "山田太郎", resp.Name)
		assert.Equal(t, 10000, resp.TotalAmount)
	})

	t.Run("存在しない場合は404", func(t *testing.T) {
		e := NewTestEcho()
		mockService := new(MockBookingService)
		mockService.On("GetBooking", mock.Anything, "missing").Return(nil, booking.ErrBookingNotFound)

		e.GET("/api/v1/bookings/:id", NewBookingHandler(mockService).GetByID)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/missing", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBookingHandler_ListByEvent(t *testing.T) {
	e := NewTestEcho()
	mockService := new(MockBookingService)
	mockService.On("ListEventBookings", mock.Anything, "event-1", 10, 5).
		Return([]*booking.Booking{sampleBooking()}, nil)

	h := NewBookingHandler(mockService)

	req := httptest.NewRequest(http.MethodGet, "/?limit=10&offset=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("event-1")

	require.NoError(t, h.ListByEvent(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "booking-1", resp[0].ID)
}
