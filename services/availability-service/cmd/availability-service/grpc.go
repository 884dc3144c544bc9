package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/mindcare/platform/libs/config"
	"github.com/mindcare/platform/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthServiceName = "mindcare.availability.v1.AvailabilityService"

// startGrpcServer serves the standard health service so that orchestrators and availctl can
// probe the process over gRPC.
func startGrpcServer(ctx context.Context, logger *slog.Logger) error {
	port, err := config.Port("GRPC_PORT", "9094")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv, hs := grpcx.NewServer(logger)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}
