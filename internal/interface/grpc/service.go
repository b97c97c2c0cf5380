package grpcservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	coordinatorv1 "github.com/ark-network/wabisabi/api-spec/coordinator/v1"
	"github.com/ark-network/wabisabi/internal/config"
	"github.com/ark-network/wabisabi/internal/interface/dashboard"
	"github.com/ark-network/wabisabi/internal/interface/grpc/handlers"
	"github.com/ark-network/wabisabi/internal/interface/grpc/interceptors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const shutdownTimeout = 5 * time.Second

type Service interface {
	Start() error
	Stop()
}

type service struct {
	config      Config
	appConfig   *config.Config
	server      *grpc.Server
	adminServer *http.Server
}

func NewService(svcConfig Config, appConfig *config.Config) (Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	creds := insecure.NewCredentials()
	if !svcConfig.insecure() {
		if err := generateTLSKeyCert(
			svcConfig.tlsDatadir(), svcConfig.TLSExtraIPs, svcConfig.TLSExtraDomains,
		); err != nil {
			return nil, err
		}
		log.Debugf("generated TLS key pair at path: %s", svcConfig.tlsDatadir())

		tlsCreds, err := svcConfig.tlsCreds()
		if err != nil {
			return nil, err
		}
		creds = tlsCreds
	}

	appSvc, err := appConfig.AppService()
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(interceptors.UnaryInterceptor(), grpc.Creds(creds))
	coordinatorv1.RegisterCoordinatorServiceServer(server, handlers.NewHandler(appSvc))

	adminServer := &http.Server{
		Addr:              svcConfig.adminAddress(),
		Handler:           dashboard.NewService(appSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &service{svcConfig, appConfig, server, adminServer}, nil
}

func (s *service) Start() error {
	appSvc, err := s.appConfig.AppService()
	if err != nil {
		return err
	}
	if err := appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	lis, err := net.Listen("tcp", s.config.address())
	if err != nil {
		return err
	}
	// nolint:all
	go s.server.Serve(lis)
	log.Infof("started listening at %s", s.config.address())

	go func() {
		if err := s.adminServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			log.WithError(err).Error("admin server stopped")
		}
	}()
	log.Infof("started admin server at %s", s.config.adminAddress())

	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// nolint:all
	s.adminServer.Shutdown(ctx)
	log.Info("stopped admin server")

	s.server.GracefulStop()
	log.Info("stopped grpc server")

	if appSvc, _ := s.appConfig.AppService(); appSvc != nil {
		appSvc.Stop()
		log.Info("stopped app service")
	}
}
