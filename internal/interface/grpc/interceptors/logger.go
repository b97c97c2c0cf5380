package interceptors

import (
	"context"
	"time"

	"github.com/ark-network/wabisabi/internal/instrument"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func unaryLogger(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	log.Debugf("gRPC method: %s", info.FullMethod)
	resp, err := handler(ctx, req)
	if err != nil {
		log.WithError(err).Debugf("gRPC method %s failed", info.FullMethod)
	}
	return resp, err
}

func unaryMetrics(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	started := time.Now()
	resp, err := handler(ctx, req)
	instrument.Request(info.FullMethod, status.Code(err).String(), started)
	return resp, err
}

func recoveryHandler(p interface{}) error {
	log.Errorf("recovered from panic: %v", p)
	return status.Error(codes.Internal, "internal error")
}
