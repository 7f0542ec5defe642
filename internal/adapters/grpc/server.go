package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/keygate/license-service/internal/application"
	"github.com/keygate/license-service/internal/domain"
)

type LicenseInternalService interface {
	VerifyLicense(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLicenseStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type LicenseInternalServer struct {
	service *application.Service
}

func NewLicenseInternalServer(service *application.Service) *LicenseInternalServer {
	return &LicenseInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc LicenseInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "keygate.license.v1.LicenseInternalService",
		HandlerType: (*LicenseInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "VerifyLicense",
				Handler:    verifyLicenseHandler(svc),
			},
			{
				MethodName: "GetLicenseStatus",
				Handler:    getLicenseStatusHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "keygate/proto/license/v1/license_internal.proto",
	}, svc)
}

func (s *LicenseInternalServer) VerifyLicense(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	licenseKey := fields["license_key"].GetStringValue()
	if licenseKey == "" {
		return nil, status.Error(codes.InvalidArgument, "missing license_key")
	}
	ipAddress := fields["ip_address"].GetStringValue()
	if ipAddress == "" {
		return nil, status.Error(codes.InvalidArgument, "missing ip_address")
	}

	result, err := s.service.Verify(ctx, application.VerifyRequest{
		LicenseKey: licenseKey,
		Software:   fields["software"].GetStringValue(),
		IPAddress:  ipAddress,
	})
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			return nil, status.Error(codes.ResourceExhausted, "rate limited")
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, status.Error(codes.InvalidArgument, "invalid request")
		}
		return nil, status.Error(codes.Internal, "verification failed")
	}

	payload := map[string]any{
		"decision": string(result.Decision),
		"message":  result.Message,
		"allowed":  result.Decision == domain.DecisionAllowed,
	}
	if result.BlockedUntil != nil {
		payload["blocked_until"] = result.BlockedUntil.Unix()
	}
	if result.ExpiresAt != nil {
		payload["expires_at"] = result.ExpiresAt.Unix()
	}
	resp, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *LicenseInternalServer) GetLicenseStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := req.GetFields()["license_id"].GetStringValue()
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "missing license_id")
	}
	licenseID, err := uuid.Parse(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid license_id")
	}

	detail, err := s.service.GetLicense(ctx, licenseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "license not found")
		}
		return nil, status.Error(codes.Internal, "lookup failed")
	}

	payload := map[string]any{
		"license_id":    detail.LicenseID.String(),
		"customer_id":   detail.CustomerID,
		"expires_at":    detail.ExpiresAt.Unix(),
		"failure_count": detail.FailureCount,
	}
	if detail.LastActivationIP != "" {
		payload["last_activation_ip"] = detail.LastActivationIP
	}
	if detail.BlockedUntil != nil {
		payload["blocked_until"] = detail.BlockedUntil.Unix()
	}
	resp, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func verifyLicenseHandler(svc LicenseInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.VerifyLicense(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/keygate.license.v1.LicenseInternalService/VerifyLicense",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.VerifyLicense(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getLicenseStatusHandler(svc LicenseInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetLicenseStatus(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/keygate.license.v1.LicenseInternalService/GetLicenseStatus",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetLicenseStatus(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
