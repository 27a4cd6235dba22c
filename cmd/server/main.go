package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/smartinvoice/internal/config"
	"github.com/goodnatureofminers/smartinvoice/internal/extract"
	"github.com/goodnatureofminers/smartinvoice/internal/ledger"
	"github.com/goodnatureofminers/smartinvoice/internal/metrics"
	"github.com/goodnatureofminers/smartinvoice/internal/scoring"
	"github.com/goodnatureofminers/smartinvoice/internal/service"
	"github.com/goodnatureofminers/smartinvoice/internal/settlement"
	"github.com/goodnatureofminers/smartinvoice/internal/transport"
	grpcMiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcZap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpcRecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcCtxTags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	grpcPrometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type serverConfig struct {
	GRPCAddr       string `long:"grpc-addr" env:"SMARTINVOICE_GRPC_ADDR" description:"gRPC listen address" default:":8000"`
	HTTPAddr       string `long:"http-addr" env:"SMARTINVOICE_HTTP_ADDR" description:"HTTP listen address" default:":8001"`
	UploadDir      string `long:"upload-dir" env:"SMARTINVOICE_UPLOAD_DIR" description:"directory receiving uploaded files, empty disables saving" default:"data/uploads"`
	MaxUploadBytes int64  `long:"max-upload-bytes" env:"SMARTINVOICE_MAX_UPLOAD_BYTES" description:"largest accepted upload" default:"10485760"`

	Settlement config.Settlement `group:"Settlement Options"`
	Ledger     config.Ledger     `group:"Ledger Options"`
	Extractor  config.Extractor  `group:"Extractor Options"`
}

func main() {
	cfg := serverConfig{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()
	grpcZap.ReplaceGrpcLoggerV2(logger)

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}
	if err := cfg.Ledger.Validate(); err != nil {
		logger.Fatal("invalid ledger options", zap.Error(err))
	}
	for _, w := range cfg.Settlement.Warnings() {
		logger.Warn(w)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("smartinvoice server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg serverConfig, logger *zap.Logger) error {
	settings, err := cfg.Settlement.PipelineSettings()
	if err != nil {
		return fmt.Errorf("settlement options: %w", err)
	}

	store, err := ledger.NewFileStore(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("init ledger store: %w", err)
	}
	history, err := ledger.Open(store, metrics.NewLedger(), logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	client, err := settlement.NewClient(cfg.Settlement.ClientConfig(), logger)
	if err != nil {
		return fmt.Errorf("init settlement client: %w", err)
	}
	extractor := extract.New(cfg.Extractor.OCRCommand, logger)

	pipeline, err := service.NewPipeline(
		extractor,
		scoring.New(),
		settlement.NewObservedClient(client, metrics.NewSettlementClient()),
		history,
		metrics.NewPipeline(),
		settings,
		logger,
	)
	if err != nil {
		return err
	}

	logger.Info("pipeline ready",
		zap.String("ledger", store.Path()),
		zap.Int("records", history.Len()),
		zap.String("settlement_mode", cfg.Settlement.Mode),
		zap.Bool("ocr", extractor.OCRAvailable()),
	)

	grpcServer, err := startGRPCServer(ctx, cfg.GRPCAddr, logger)
	if err != nil {
		return err
	}
	defer grpcServer.GracefulStop()

	conn, err := grpc.NewClient(dialTarget(cfg.GRPCAddr), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial grpc health: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	gw := gwruntime.NewServeMux(gwruntime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))

	mux := http.NewServeMux()
	transport.NewHandler(transport.HandlerConfig{
		Overview: transport.Overview{
			SourceWalletID:     settings.SourceWalletID,
			DestinationAddress: settings.DestinationAddress,
			PaymentAmount:      cfg.Settlement.Amount,
			OCRAvailable:       extractor.OCRAvailable(),
		},
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, pipeline, history, logger).Register(mux)
	mux.Handle("/healthz", gw)
	mux.Handle("/metrics", promhttp.Handler())

	// Uploads wait on a live transfer, so the write timeout covers the settlement timeout.
	writeTimeout := 15*time.Second + cfg.Settlement.Timeout
	s := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           cors.Default().Handler(transport.WithLogging(mux, logger)),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("Starting HTTP server", zap.String("addr", cfg.HTTPAddr))
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func startGRPCServer(ctx context.Context, addr string, logger *zap.Logger) (*grpc.Server, error) {
	chain := []grpc.UnaryServerInterceptor{
		grpcRecovery.UnaryServerInterceptor(),
		grpcCtxTags.UnaryServerInterceptor(),
		grpcPrometheus.UnaryServerInterceptor,
		grpcZap.UnaryServerInterceptor(logger),
	}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcMiddleware.ChainUnaryServer(chain...)),
	)
	health := transport.RegisterHealth(grpcServer)
	grpcPrometheus.EnableHandlingTimeHistogram()
	grpcPrometheus.Register(grpcServer)

	socket, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		logger.Info("Starting gRPC server", zap.String("addr", addr))
		if serveErr := grpcServer.Serve(socket); serveErr != nil {
			logger.Error("gRPC server stopped", zap.Error(serveErr))
		}
	}()
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down gRPC server")
		health.Shutdown()
	}()
	return grpcServer, nil
}

// dialTarget turns a listen address such as ":8000" into a dialable target.
func dialTarget(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
