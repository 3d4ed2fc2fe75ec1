package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/domain/event"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type EventResponse struct {
	ID             string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Title          string `json:"title" example:"ジャズナイト2025"`
	Description    string `json:"description" example:"年末スペシャルライブ"`
	Location       string `json:"location" example:"ブルーノート東京"`
	Date           string `json:"date" example:"2025-12-31T19:00:00+09:00"`
	Price          int    `json:"price" example:"5000"`
	TotalSeats     int    `json:"total_seats" example:"300"`
	AvailableSeats int    `json:"available_seats" example:"120"`
	ImageURL       string `json:"image_url,omitempty" example:"/uploads/f47ac10b.jpg"`
	CreatedAt      string `json:"created_at" example:"2025-10-01T10:00:00+09:00"`
	UpdatedAt      string `json:"updated_at" example:"2025-10-01T10:00:00+09:00"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Location:       e.Location,
		Date:           e.Date.Format(time.RFC3339),
		Price:          e.Price,
		TotalSeats:     e.TotalSeats,
		AvailableSeats: e.AvailableSeats,
		ImageURL:       e.ImageURL,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

// eventForm はマルチパートフォームから取り出したイベント入力
type eventForm struct {
	Title       string
	Description string
	Location    string
	Date        time.Time
	Price       int
	TotalSeats  int
	Image       *application.ImageUpload
	ImageURL    string
	closer      multipart.File
}

func (f *eventForm) Close() {
	if f.closer != nil {
		f.closer.Close()
	}
}

func bindEventForm(c echo.Context) (*eventForm, error) {
	f := &eventForm{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Location:    c.FormValue("location"),
		ImageURL:    c.FormValue("image_url"),
	}

	date, err := time.Parse(time.RFC3339, c.FormValue("date"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "開催日時の形式が不正です（RFC3339）")
	}
	f.Date = date

	f.Price, err = strconv.Atoi(c.FormValue("price"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "価格の形式が不正です")
	}
	f.TotalSeats, err = strconv.Atoi(c.FormValue("total_seats"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "総座席数の形式が不正です")
	}

	// 画像ファイルは省略可
	fh, err := c.FormFile("image")
	if err == nil && fh != nil {
		src, openErr := fh.Open()
		if openErr != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "画像ファイルを読み込めません")
		}
		f.closer = src
		f.Image = &application.ImageUpload{Filename: fh.Filename, Reader: src}
	}
	return f, nil
}

// Create godoc
// @Summary イベントを作成
// @Description マルチパートフォームで新しいイベントを作成します（画像は省略可）
// @Tags events
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "タイトル"
// @Param description formData string false "説明"
// @Param location formData string false "開催場所"
// @Param date formData string true "開催日時（RFC3339）"
// @Param price formData int true "価格（最小通貨単位）"
// @Param total_seats formData int true "総座席数"
// @Param image formData file false "イベント画像"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	f, err := bindEventForm(c)
	if err != nil {
		return err
	}
	defer f.Close()

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Title:       f.Title,
		Description: f.Description,
		Location:    f.Location,
		Date:        f.Date,
		Price:       f.Price,
		TotalSeats:  f.TotalSeats,
		Image:       f.Image,
		ImageURL:    f.ImageURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Description 指定IDのイベントを空席数付きで取得します
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	e, err := h.eventService.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Description 検索条件に一致するイベントを開催日の昇順で返します
// @Tags events
// @Produce json
// @Param search query string false "タイトル・説明の部分一致（大文字小文字を区別しない）"
// @Param location query string false "開催場所の部分一致"
// @Param date query string false "開催日（YYYY-MM-DD）"
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	filter := event.Filter{
		Search:   c.QueryParam("search"),
		Location: c.QueryParam("location"),
	}
	if d := c.QueryParam("date"); d != "" {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "日付の形式が不正です（YYYY-MM-DD）")
		}
		filter.Date = &date
	}

	events, err := h.eventService.ListEvents(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, responses)
}

// ListLocations godoc
// @Summary 開催場所一覧を取得
// @Description 使用中の開催場所を重複なしで返します
// @Tags events
// @Produce json
// @Success 200 {array} string
// @Router /events/locations [get]
func (h *EventHandler) ListLocations(c echo.Context) error {
	locations, err := h.eventService.ListLocations(c.Request().Context())
	if err != nil {
		return err
	}
	if locations == nil {
		// nilスライスはJSONでnullになるため空配列に正規化する
		locations = []string{}
	}
	return c.JSON(http.StatusOK, locations)
}

// Update godoc
// @Summary イベントを更新
// @Description 指定IDのイベントのメタデータを更新します（画像を添付すると置き換え）
// @Tags events
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	f, err := bindEventForm(c)
	if err != nil {
		return err
	}
	defer f.Close()

	e, err := h.eventService.UpdateEvent(c.Request().Context(), application.UpdateEventInput{
		ID:          c.Param("id"),
		Title:       f.Title,
		Description: f.Description,
		Location:    f.Location,
		Date:        f.Date,
		Price:       f.Price,
		TotalSeats:  f.TotalSeats,
		Image:       f.Image,
		ImageURL:    f.ImageURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete godoc
// @Summary イベントを削除
// @Description 指定IDのイベントを削除します（紐づく予約も削除されます）
// @Tags events
// @Param id path string true "イベントID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	if err := h.eventService.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
