// Package grpcserver exposes availability to internal callers over gRPC. Messages
// are google.protobuf.Struct so no generated code is needed.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
)

const (
	ServiceName              = "salon.availability.v1.AvailabilityService"
	MethodGetAvailability    = "/" + ServiceName + "/GetAvailability"
	MethodListAvailableDates = "/" + ServiceName + "/ListAvailableDates"
)

type AvailabilityServer interface {
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAvailableDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: unary(MethodGetAvailability, AvailabilityServer.GetAvailability)},
		{MethodName: "ListAvailableDates", Handler: unary(MethodListAvailableDates, AvailabilityServer.ListAvailableDates)},
	},
	Metadata: "salon/availability/v1/availability.proto",
}

func unary(fullMethod string, call func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		})
	}
}

type server struct {
	engine *availability.Engine
}

// Register installs the availability service and the standard health service.
func Register(grpcServer *grpc.Server, engine *availability.Engine) *health.Server {
	grpcServer.RegisterService(&serviceDesc, &server{engine: engine})
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)
	return hs
}

func (s *server) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	day, err := s.engine.ParseDate(fields["date"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.engine.Availability(ctx, availability.Query{
		Date:      day,
		ServiceID: fields["service_id"].GetStringValue(),
		StaffID:   fields["staff_id"].GetStringValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	staff, err := toList(res)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode availability")
	}
	return structpb.NewStruct(map[string]any{"staff": staff})
}

func (s *server) ListAvailableDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	dates, err := s.engine.AvailableDates(ctx, req.GetFields()["service_id"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]any, 0, len(dates))
	for _, d := range dates {
		out = append(out, d)
	}
	return structpb.NewStruct(map[string]any{"dates": out})
}

// toList converts v to the generic shape structpb accepts, reusing the JSON field names.
func toList(v any) ([]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := []any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toStatus(err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return status.Error(codes.Internal, "internal error")
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return status.Error(codes.InvalidArgument, ae.Message)
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, ae.Message)
	case apperr.KindConflict:
		return status.Error(codes.Aborted, ae.Message)
	case apperr.KindForbidden:
		return status.Error(codes.PermissionDenied, ae.Message)
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
