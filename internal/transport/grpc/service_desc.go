package grpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	ggrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "caresched.v1.SchedulingService"

// SchedulingService is served with google.protobuf.Struct messages on both
// sides; field names are the snake_case JSON names of the request types.
type SchedulingService interface {
	SuggestSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProviderSchedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ClientBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListProviders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv SchedulingService, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

var ServiceDesc = ggrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingService)(nil),
	Methods: []ggrpc.MethodDesc{
		{MethodName: "SuggestSlots", Handler: unary("SuggestSlots", SchedulingService.SuggestSlots)},
		{MethodName: "CreateBooking", Handler: unary("CreateBooking", SchedulingService.CreateBooking)},
		{MethodName: "UpdateBooking", Handler: unary("UpdateBooking", SchedulingService.UpdateBooking)},
		{MethodName: "CancelBooking", Handler: unary("CancelBooking", SchedulingService.CancelBooking)},
		{MethodName: "GetBooking", Handler: unary("GetBooking", SchedulingService.GetBooking)},
		{MethodName: "ProviderSchedule", Handler: unary("ProviderSchedule", SchedulingService.ProviderSchedule)},
		{MethodName: "ClientBookings", Handler: unary("ClientBookings", SchedulingService.ClientBookings)},
		{MethodName: "ListProviders", Handler: unary("ListProviders", SchedulingService.ListProviders)},
	},
	Streams:  []ggrpc.StreamDesc{},
	Metadata: "caresched/v1/scheduling.proto",
}

func RegisterSchedulingService(r ggrpc.ServiceRegistrar, srv SchedulingService) {
	r.RegisterService(&ServiceDesc, srv)
}

func unary(method string, call unaryCall) ggrpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor ggrpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulingService), ctx, in)
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulingService), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, &ggrpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}

// decodeRequest maps a Struct onto dst, rejecting fields dst does not declare.
func decodeRequest(in *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request: %w", err)
	}
	return nil
}

func encodeResponse(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
