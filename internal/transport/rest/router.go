// Package rest is the JSON gateway over the scheduling services. It carries
// the same semantics and error mapping as the gRPC server.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/service/booking"
	"caresched/backend/internal/service/slots"
	"caresched/backend/internal/store"
	"caresched/backend/internal/transport/view"
)

type slotService interface {
	Suggest(ctx context.Context, req slots.Request) ([]domain.CandidateSlot, error)
}

type bookingService interface {
	Create(ctx context.Context, in booking.CreateInput) (domain.Booking, error)
	Update(ctx context.Context, in booking.UpdateInput) (domain.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ProviderSchedule(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Booking, error)
	ClientBookings(ctx context.Context, clientID uuid.UUID, includePast bool) ([]domain.Booking, error)
	ListProviders(ctx context.Context, specialty string, includeInactive bool) ([]domain.Provider, error)
}

type limiter interface {
	Allow(key string) bool
}

type Handler struct {
	slots    slotService
	bookings bookingService
	log      *slog.Logger
}

func NewHandler(slots slotService, bookings bookingService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		slots:    slots,
		bookings: bookings,
		log:      log.With(slog.String("component", "rest")),
	}
}

// NewRouter builds the gin engine. A nil limiter disables rate limiting and
// CORS headers are only sent when origins are given.
func NewRouter(h *Handler, l limiter, requestTimeout time.Duration, corsOrigins ...string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(gin.Recovery(), h.accessLog())
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  corsOrigins,
			AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Idempotency-Key", "X-Idempotency-Key"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	if l != nil {
		r.Use(h.rateLimit(l))
	}
	if requestTimeout > 0 {
		r.Use(deadline(requestTimeout))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := r.Group("/v1")
	v1.GET("/slots", h.suggestSlots)
	v1.POST("/bookings", h.createBooking)
	v1.GET("/bookings/:id", h.getBooking)
	v1.PATCH("/bookings/:id", h.updateBooking)
	v1.POST("/bookings/:id/cancel", h.cancelBooking)
	v1.GET("/providers", h.listProviders)
	v1.GET("/providers/:id/schedule", h.providerSchedule)
	v1.GET("/clients/:id/bookings", h.clientBookings)
	return r
}

type suggestSlotsQuery struct {
	AppointmentType string    `form:"appointment_type" binding:"required"`
	Urgency         int       `form:"urgency" binding:"omitempty,min=1,max=5"`
	ProviderIDs     []string  `form:"provider_id" binding:"omitempty,dive,uuid"`
	Specialty       string    `form:"specialty"`
	PreferredTime   string    `form:"preferred_time"`
	From            time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To              time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit           int       `form:"limit" binding:"omitempty,min=1"`
}

func (h *Handler) suggestSlots(c *gin.Context) {
	var q suggestSlotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}

	req := slots.Request{
		AppointmentType: q.AppointmentType,
		Urgency:         q.Urgency,
		Specialty:       strings.TrimSpace(q.Specialty),
		From:            q.From,
		To:              q.To,
		Limit:           q.Limit,
	}
	if req.Urgency == 0 {
		req.Urgency = domain.DefaultUrgency
	}
	for _, raw := range q.ProviderIDs {
		req.ProviderIDs = append(req.ProviderIDs, uuid.MustParse(raw))
	}
	if q.PreferredTime != "" {
		t, err := domain.ParseTimeOfDay(q.PreferredTime)
		if err != nil {
			badRequest(c, "preferred_time must be HH:MM")
			return
		}
		req.PreferredTime = &t
	}

	out, err := h.slots.Suggest(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "slot suggestion failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": view.FromSlots(out)})
}

type createBookingBody struct {
	ProviderID      string     `json:"provider_id" binding:"required,uuid"`
	ClientID        string     `json:"client_id" binding:"required,uuid"`
	StartTime       time.Time  `json:"start_time" binding:"required"`
	EndTime         *time.Time `json:"end_time"`
	AppointmentType string     `json:"appointment_type" binding:"required"`
	Urgency         int        `json:"urgency" binding:"omitempty,min=1,max=5"`
	Notes           string     `json:"notes" binding:"max=2000"`
}

func (h *Handler) createBooking(c *gin.Context) {
	var body createBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	in := booking.CreateInput{
		ProviderID:      uuid.MustParse(body.ProviderID),
		ClientID:        uuid.MustParse(body.ClientID),
		StartTime:       body.StartTime,
		AppointmentType: body.AppointmentType,
		Urgency:         body.Urgency,
		Notes:           body.Notes,
		IdempotencyKey:  idempotencyKey(c),
	}
	if body.EndTime != nil {
		in.EndTime = *body.EndTime
	}

	b, err := h.bookings.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "booking create failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": view.FromBooking(b)})
}

type updateBookingBody struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    *string    `json:"status" binding:"omitempty,oneof=scheduled completed cancelled no_show"`
	Notes     *string    `json:"notes" binding:"omitempty,max=2000"`
	Urgency   *int       `json:"urgency" binding:"omitempty,min=1,max=5"`
}

func (h *Handler) updateBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body updateBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	in := booking.UpdateInput{ID: id, StartTime: body.StartTime, EndTime: body.EndTime, Notes: body.Notes, Urgency: body.Urgency}
	if body.Status != nil {
		st := domain.BookingStatus(*body.Status)
		in.Status = &st
	}

	b, err := h.bookings.Update(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "booking update failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": view.FromBooking(b)})
}

func (h *Handler) cancelBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "booking cancel failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": view.FromBooking(b)})
}

func (h *Handler) getBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "booking lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": view.FromBooking(b)})
}

type rangeQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

func (h *Handler) providerSchedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var q rangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	rows, err := h.bookings.ProviderSchedule(c.Request.Context(), id, q.From, q.To)
	if err != nil {
		h.fail(c, "provider schedule failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": view.FromBookings(rows)})
}

func (h *Handler) clientBookings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var q struct {
		IncludePast bool `form:"include_past"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	rows, err := h.bookings.ClientBookings(c.Request.Context(), id, q.IncludePast)
	if err != nil {
		h.fail(c, "client bookings failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": view.FromBookings(rows)})
}

func (h *Handler) listProviders(c *gin.Context) {
	var q struct {
		Specialty       string `form:"specialty"`
		IncludeInactive bool   `form:"include_inactive"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	rows, err := h.bookings.ListProviders(c.Request.Context(), q.Specialty, q.IncludeInactive)
	if err != nil {
		h.fail(c, "provider list failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": view.FromProviders(rows)})
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	log := h.log.With(slog.String("path", c.FullPath()))
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		nf *domain.NotFoundError
	)
	switch {
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(msg, slog.String("reason", "idempotency_conflict"))
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "This request key was already used for a different booking. Try again."})
	case errors.As(err, &ce):
		log.Info(msg, slog.String("reason", "conflict"), slog.String("conflicting_booking_id", ce.BookingID.String()))
		body := gin.H{"error": ce.Error()}
		if ce.BookingID != uuid.Nil {
			body["conflicting_booking_id"] = ce.BookingID.String()
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
	case errors.As(err, &ve):
		log.Warn(msg, slog.Any("err", err))
		badRequest(c, ve.Error())
	case errors.As(err, &nf):
		log.Info(msg, slog.String("reason", "not_found"))
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, slog.Any("err", err))
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		log.Error(msg, slog.Any("err", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func idempotencyKey(c *gin.Context) string {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		key = c.GetHeader("X-Idempotency-Key")
	}
	return strings.TrimSpace(key)
}
