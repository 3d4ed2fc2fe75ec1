package handler

import (
	"context"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, filter event.Filter) ([]*event.Event, error)
	ListLocations(ctx context.Context) ([]string, error)
	UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*application.CreateBookingOutput, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	ListEventBookings(ctx context.Context, eventID string, limit, offset int) ([]*booking.Booking, error)
}
