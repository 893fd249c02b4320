package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

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

type SchedulingServer struct {
	slots    slotService
	bookings bookingService
	log      *slog.Logger
}

var _ SchedulingService = (*SchedulingServer)(nil)

func NewSchedulingServer(slots slotService, bookings bookingService, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		slots:    slots,
		bookings: bookings,
		log:      log.With(slog.String("component", "grpc.scheduling")),
	}
}

type suggestSlotsRequest struct {
	AppointmentType string     `json:"appointment_type"`
	Urgency         *int       `json:"urgency"`
	ProviderIDs     []string   `json:"provider_ids"`
	Specialty       string     `json:"specialty"`
	PreferredTime   string     `json:"preferred_time"`
	From            *time.Time `json:"from"`
	To              *time.Time `json:"to"`
	Limit           int        `json:"limit"`
}

func (s *SchedulingServer) SuggestSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "SuggestSlots"))

	var req suggestSlotsRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	if req.AppointmentType == "" {
		log.Warn("invalid request", slog.String("reason", "missing_appointment_type"))
		return nil, status.Error(codes.InvalidArgument, "appointment_type is required")
	}

	sr := slots.Request{
		AppointmentType: req.AppointmentType,
		Urgency:         domain.DefaultUrgency,
		Specialty:       strings.TrimSpace(req.Specialty),
		From:            derefTime(req.From),
		To:              derefTime(req.To),
		Limit:           req.Limit,
	}
	if req.Urgency != nil {
		sr.Urgency = *req.Urgency
	}
	for _, raw := range req.ProviderIDs {
		id, err := parseID(log, "provider_ids", raw)
		if err != nil {
			return nil, err
		}
		sr.ProviderIDs = append(sr.ProviderIDs, id)
	}
	if req.PreferredTime != "" {
		t, err := domain.ParseTimeOfDay(req.PreferredTime)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_preferred_time"))
			return nil, status.Error(codes.InvalidArgument, "preferred_time must be HH:MM")
		}
		sr.PreferredTime = &t
	}

	out, err := s.slots.Suggest(ctx, sr)
	if err != nil {
		return nil, s.fail(log, "slot suggestion failed", err)
	}
	log.Debug("slots suggested", slog.String("appointment_type", sr.AppointmentType), slog.Int("count", len(out)))
	return s.respond(log, map[string]any{"slots": view.FromSlots(out)})
}

type createBookingRequest struct {
	ProviderID      string     `json:"provider_id"`
	ClientID        string     `json:"client_id"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	AppointmentType string     `json:"appointment_type"`
	Urgency         int        `json:"urgency"`
	Notes           string     `json:"notes"`
}

func (s *SchedulingServer) CreateBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	var req createBookingRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	if req.StartTime == nil || req.AppointmentType == "" {
		log.Warn("invalid request", slog.String("reason", "missing_fields"))
		return nil, status.Error(codes.InvalidArgument, "start_time and appointment_type are required")
	}
	providerID, err := parseID(log, "provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}
	clientID, err := parseID(log, "client_id", req.ClientID)
	if err != nil {
		return nil, err
	}

	b, err := s.bookings.Create(ctx, booking.CreateInput{
		ProviderID:      providerID,
		ClientID:        clientID,
		StartTime:       *req.StartTime,
		EndTime:         derefTime(req.EndTime),
		AppointmentType: req.AppointmentType,
		Urgency:         req.Urgency,
		Notes:           req.Notes,
		IdempotencyKey:  idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.fail(log.With(slog.String("provider_id", providerID.String())), "booking create failed", err)
	}
	return s.respond(log, map[string]any{"booking": view.FromBooking(b)})
}

type updateBookingRequest struct {
	ID        string     `json:"id"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    *string    `json:"status"`
	Notes     *string    `json:"notes"`
	Urgency   *int       `json:"urgency"`
}

func (s *SchedulingServer) UpdateBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "UpdateBooking"))

	var req updateBookingRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "id", req.ID)
	if err != nil {
		return nil, err
	}

	upd := booking.UpdateInput{ID: id, StartTime: req.StartTime, EndTime: req.EndTime, Notes: req.Notes, Urgency: req.Urgency}
	if req.Status != nil {
		st, err := domain.ParseBookingStatus(*req.Status)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_status"))
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		upd.Status = &st
	}

	b, err := s.bookings.Update(ctx, upd)
	if err != nil {
		return nil, s.fail(log.With(slog.String("booking_id", id.String())), "booking update failed", err)
	}
	return s.respond(log, map[string]any{"booking": view.FromBooking(b)})
}

type bookingIDRequest struct {
	ID string `json:"id"`
}

func (s *SchedulingServer) CancelBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CancelBooking"))

	var req bookingIDRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "id", req.ID)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.Cancel(ctx, id)
	if err != nil {
		return nil, s.fail(log.With(slog.String("booking_id", id.String())), "booking cancel failed", err)
	}
	return s.respond(log, map[string]any{"booking": view.FromBooking(b)})
}

func (s *SchedulingServer) GetBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetBooking"))

	var req bookingIDRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "id", req.ID)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, s.fail(log.With(slog.String("booking_id", id.String())), "booking lookup failed", err)
	}
	return s.respond(log, map[string]any{"booking": view.FromBooking(b)})
}

type providerScheduleRequest struct {
	ProviderID string     `json:"provider_id"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
}

func (s *SchedulingServer) ProviderSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ProviderSchedule"))

	var req providerScheduleRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "provider_id", req.ProviderID)
	if err != nil {
		return nil, err
	}
	rows, err := s.bookings.ProviderSchedule(ctx, id, derefTime(req.From), derefTime(req.To))
	if err != nil {
		return nil, s.fail(log.With(slog.String("provider_id", id.String())), "provider schedule failed", err)
	}
	return s.respond(log, map[string]any{"bookings": view.FromBookings(rows)})
}

type clientBookingsRequest struct {
	ClientID    string `json:"client_id"`
	IncludePast bool   `json:"include_past"`
}

func (s *SchedulingServer) ClientBookings(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ClientBookings"))

	var req clientBookingsRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(log, "client_id", req.ClientID)
	if err != nil {
		return nil, err
	}
	rows, err := s.bookings.ClientBookings(ctx, id, req.IncludePast)
	if err != nil {
		return nil, s.fail(log.With(slog.String("client_id", id.String())), "client bookings failed", err)
	}
	return s.respond(log, map[string]any{"bookings": view.FromBookings(rows)})
}

type listProvidersRequest struct {
	Specialty       string `json:"specialty"`
	IncludeInactive bool   `json:"include_inactive"`
}

func (s *SchedulingServer) ListProviders(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListProviders"))

	var req listProvidersRequest
	if err := s.decode(log, in, &req); err != nil {
		return nil, err
	}
	rows, err := s.bookings.ListProviders(ctx, req.Specialty, req.IncludeInactive)
	if err != nil {
		return nil, s.fail(log, "provider list failed", err)
	}
	return s.respond(log, map[string]any{"providers": view.FromProviders(rows)})
}

func (s *SchedulingServer) decode(log *slog.Logger, in *structpb.Struct, dst any) error {
	if in == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return status.Error(codes.InvalidArgument, "request is required")
	}
	if err := decodeRequest(in, dst); err != nil {
		log.Warn("invalid request", slog.String("reason", "malformed"), slog.Any("err", err))
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func (s *SchedulingServer) respond(log *slog.Logger, v any) (*structpb.Struct, error) {
	out, err := encodeResponse(v)
	if err != nil {
		log.Error("response encode failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// fail maps service errors onto gRPC status codes and logs them at a level
// matching who is at fault.
func (s *SchedulingServer) fail(log *slog.Logger, msg string, err error) error {
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		nf *domain.NotFoundError
	)
	switch {
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(msg, slog.String("reason", "idempotency_conflict"))
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	case errors.As(err, &ce):
		log.Info(msg, slog.String("reason", "conflict"), slog.String("conflicting_booking_id", ce.BookingID.String()))
		return status.Error(codes.FailedPrecondition, ce.Error())
	case errors.As(err, &ve):
		log.Warn(msg, slog.Any("err", err))
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.As(err, &nf):
		log.Info(msg, slog.String("reason", "not_found"))
		return status.Error(codes.NotFound, nf.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, slog.Any("err", err))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	}
	log.Error(msg, slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}

func parseID(log *slog.Logger, field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("field", field))
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s must be a UUID", field)
	}
	return id, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
