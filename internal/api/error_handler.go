package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CustomHTTPErrorHandler はドメインエラーをHTTPステータスへ対応付けるエラーハンドラー
//
//	見つからない               → 404
//	空席不足                   → 400 (code: insufficient_capacity)
//	バリデーション・楽観的ロック → 400
//	タイムアウト               → 503
//	その他                     → 500
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code      = http.StatusInternalServerError
		message   = "内部サーバーエラー"
		errorCode string
	)

	switch {
	case errors.Is(err, event.ErrEventNotFound), errors.Is(err, booking.ErrBookingNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, booking.ErrInsufficientCapacity):
		code = http.StatusBadRequest
		message = err.Error()
		errorCode = "insufficient_capacity"
	case errors.Is(err, event.ErrOptimisticLockConflict):
		code = http.StatusConflict
		message = err.Error()
	case isValidationError(err):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
		message = "処理がタイムアウトしました"
	default:
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		}
	}

	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{Error: message, Code: errorCode}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

func isValidationError(err error) bool {
	validationErrors := []error{
		event.ErrEventTitleRequired,
		event.ErrInvalidTotalSeats,
		event.ErrInvalidPrice,
		event.ErrInvalidAvailableSeats,
		event.ErrTotalSeatsBelowSold,
		booking.ErrEventIDRequired,
		booking.ErrCustomerNameRequired,
		booking.ErrCustomerEmailRequired,
		booking.ErrInvalidQuantity,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
