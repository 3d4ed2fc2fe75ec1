package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/booking"
)

type BookingHandler struct {
	bookingService BookingServiceInterface
}

func NewBookingHandler(bookingService BookingServiceInterface) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

type CreateBookingRequest struct {
	EventID  string `json:"event_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name     string `json:"name" validate:"required" example:"山田太郎"`
	Email    string `json:"email" validate:"required,email" example:"taro@example.com"`
	Mobile   string `json:"mobile" example:"090-1234-5678"`
	Quantity int    `json:"quantity" validate:"required,gt=0" example:"2"`
}

// CreateBookingResponse は予約成立時のレスポンス
type CreateBookingResponse struct {
	Message        string `json:"message" example:"予約が完了しました"`
	BookingID      string `json:"booking_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	AvailableSeats int    `json:"available_seats" example:"118"`
}

type BookingResponse struct {
	ID          string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID     string `json:"event_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name        string `json:"name" example:"山田太郎"`
	Email       string `json:"email" example:"taro@example.com"`
	Mobile      string `json:"mobile" example:"090-1234-5678"`
	Quantity    int    `json:"quantity" example:"2"`
	TotalAmount int    `json:"total_amount" example:"10000"`
	CreatedAt   string `json:"created_at" example:"2025-10-01T10:00:00+09:00"`
}

func toBookingResponse(b *booking.Booking) *BookingResponse {
	return &BookingResponse{
		ID:          b.ID,
		EventID:     b.EventID,
		Name:        b.Name,
		Email:       b.Email,
		Mobile:      b.Mobile,
		Quantity:    b.Quantity,
		TotalAmount: b.TotalAmount,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
}

// Create godoc
// @Summary 予約を作成
// @Description 空席数を行ロック下で再確認した上で予約を確定します
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} CreateBookingResponse
// @Failure 400 {object} api.ErrorResponse "空席不足の場合は code=insufficient_capacity"
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	out, err := h.bookingService.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		EventID:  req.EventID,
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Quantity: req.Quantity,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreateBookingResponse{
		Message:        "予約が完了しました",
		BookingID:      out.Booking.ID,
		AvailableSeats: out.AvailableSeats,
	})
}

// GetByID godoc
// @Summary 予約を取得
// @Description 指定IDの予約を取得します
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	b, err := h.bookingService.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// ListByEvent godoc
// @Summary イベントの予約一覧を取得
// @Description 指定イベントの予約を新しい順に返します
// @Tags bookings
// @Produce json
// @Param id path string true "イベントID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Router /events/{id}/bookings [get]
func (h *BookingHandler) ListByEvent(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	bookings, err := h.bookingService.ListEventBookings(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return err
	}

	responses := make([]*BookingResponse, len(bookings))
	for i, b := range bookings {
		responses[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, responses)
}
