package server

import (
	"context"
	"path"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/therapy-booking/internal/calendar"
	"github.com/Leganyst/therapy-booking/internal/repository"
	"github.com/Leganyst/therapy-booking/internal/service"
	"github.com/Leganyst/therapy-booking/internal/telemetry"
)

const ServiceName = "therapy.booking.v1.SchedulingService"

// Metadata keys carrying the identity established by the session layer.
const (
	CallerIDKey   = "x-caller-id"
	CallerRoleKey = "x-caller-role"
)

// SchedulingServer exposes the scheduling services over gRPC with
// google.protobuf.Struct messages.
type SchedulingServer struct {
	materializer *service.Materializer
	bookings     *service.BookingService
	leaves       *service.LeaveService
	providers    repository.ProviderRepository
	logger       zerolog.Logger
}

func NewSchedulingServer(
	materializer *service.Materializer,
	bookings *service.BookingService,
	leaves *service.LeaveService,
	providers repository.ProviderRepository,
	logger zerolog.Logger,
) *SchedulingServer {
	return &SchedulingServer{
		materializer: materializer,
		bookings:     bookings,
		leaves:       leaves,
		providers:    providers,
		logger:       logger.With().Str("component", "grpc").Logger(),
	}
}

type handlerFunc func(ctx context.Context, caller calendar.Caller, req *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc describes the unary methods; every request and response is a Struct.
func (s *SchedulingServer) ServiceDesc() grpc.ServiceDesc {
	handlers := []struct {
		name string
		h    handlerFunc
	}{
		{"SetTemplate", s.setTemplate},
		{"Materialize", s.materialize},
		{"GetSlotsForDate", s.getSlotsForDate},
		{"ListAvailableSlots", s.listAvailableSlots},
		{"BookSlot", s.bookSlot},
		{"CancelBooking", s.cancelBooking},
		{"CompleteBooking", s.completeBooking},
		{"ListBookings", s.listBookings},
		{"GrantConsent", s.grantConsent},
		{"RevokeConsent", s.revokeConsent},
		{"RequestLeave", s.requestLeave},
		{"DecideLeave", s.decideLeave},
		{"GetBalances", s.getBalances},
	}

	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
	}
	for _, m := range handlers {
		desc.Methods = append(desc.Methods, unary(m.name, m.h))
	}
	return desc
}

func unary(name string, h handlerFunc) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				caller, err := callerFromContext(ctx)
				if err != nil {
					return nil, err
				}
				out, err := h(ctx, caller, req.(*structpb.Struct))
				if err != nil {
					return nil, toStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, call)
		},
	}
}

// Register attaches the scheduling, health and reflection services.
func (s *SchedulingServer) Register(g *grpc.Server) *health.Server {
	desc := s.ServiceDesc()
	g.RegisterService(&desc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, hs)
	reflection.Register(g)
	return hs
}

// NewGRPCServer builds a server with the request logging and metrics interceptor.
func NewGRPCServer(logger zerolog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryInterceptor(logger))}, opts...)
	return grpc.NewServer(opts...)
}

// UnaryInterceptor counts calls per method and code and logs failures.
func UnaryInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		method := path.Base(info.FullMethod)
		telemetry.RPCRequests.WithLabelValues(method, code.String()).Inc()

		ev := logger.Debug()
		if code == codes.Internal || code == codes.Unknown {
			ev = logger.Error().Err(err)
		}
		ev.Str("method", method).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}

func callerFromContext(ctx context.Context) (calendar.Caller, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	caller, err := calendar.ParseCaller(first(md.Get(CallerIDKey)), first(md.Get(CallerRoleKey)))
	if err != nil {
		return calendar.Caller{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return caller, nil
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
