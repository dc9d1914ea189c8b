package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/orders/internal/health"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
	"github.com/vladislavdragonenkov/orders/internal/service/enricher"
	"github.com/vladislavdragonenkov/orders/internal/service/httpapi"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/service/sequencer"
	"github.com/vladislavdragonenkov/orders/internal/tracing"
	"github.com/vladislavdragonenkov/orders/internal/version"
)

const shutdownTimeout = 5 * time.Second

// App - собранный сервис заказов: HTTP API, метрики, gRPC health и outbox worker.
type App struct {
	cfg    Config
	logger *log.Entry

	deps      *Dependencies
	tracer    *tracing.Provider
	kafka     *eventPublishers
	worker    *outbox.Worker
	sequencer *sequencer.Sequencer

	httpSrv    *http.Server
	httpLis    net.Listener
	metricsSrv *http.Server
	metricsLis net.Listener
	grpcSrv    *grpc.Server
	grpcHealth *health.Server
	grpcLis    net.Listener
}

// Run собирает приложение и блокируется до отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// New инициализирует зависимости, номер заказа и открывает все listeners.
func New(ctx context.Context, cfg Config) (_ *App, err error) {
	a := &App{cfg: cfg, logger: log.WithField("component", "app")}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	a.tracer, err = tracing.Setup(cfg.JaegerEndpoint, version.GetVersion())
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	a.deps, err = NewDependencies(ctx, cfg, a.logger)
	if err != nil {
		return nil, err
	}

	orderMetrics := metrics.NewOrderMetrics()

	enr := enricher.New(a.deps.Products,
		enricher.WithConcurrency(cfg.EnrichConcurrency),
		enricher.WithMetrics(orderMetrics),
	)

	a.sequencer = sequencer.New(a.deps.Repo, sequencer.WithMetrics(orderMetrics))
	a.sequencer.Init(ctx)

	a.kafka = initKafka(cfg, a.logger)

	serviceOpts := []orders.Option{orders.WithMetrics(orderMetrics)}
	if outboxRepo := a.kafka.outbox(a.deps.OutboxRepo); outboxRepo != nil {
		serviceOpts = append(serviceOpts, orders.WithOutbox(outboxRepo))
	}
	svc := orders.NewService(a.deps.Repo, enr, a.sequencer, serviceOpts...)

	if a.kafka != nil {
		a.worker = outbox.NewWorker(a.deps.OutboxRepo, a.kafka.events,
			outbox.WithDLQPublisher(a.kafka.dlq),
			outbox.WithMetrics(metrics.NewOutboxMetrics()),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		)
	}

	api := httpapi.NewHandler(svc,
		httpapi.WithMetrics(orderMetrics),
		httpapi.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	)
	a.httpSrv = &http.Server{
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewCriticalChecker("storage", a.deps.StoragePing))
	healthHandler.RegisterChecker("product-service", healthcheck.NewDegradedChecker("product-service", a.deps.Products.Ping))
	a.metricsSrv = &http.Server{
		Handler:           metricsMux(healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if a.httpLis, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
		return nil, fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	if a.metricsLis, err = net.Listen("tcp", cfg.MetricsAddr); err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", cfg.MetricsAddr, err)
	}

	if cfg.GRPCAddr != "" {
		a.grpcSrv, a.grpcHealth = newGRPCServer(a.logger)
		if a.grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			return nil, fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
		}
	}

	return a, nil
}

// HTTPAddr возвращает фактический адрес HTTP API.
func (a *App) HTTPAddr() string { return a.httpLis.Addr().String() }

// MetricsAddr возвращает фактический адрес сервера метрик.
func (a *App) MetricsAddr() string { return a.metricsLis.Addr().String() }

// GRPCAddr возвращает адрес gRPC health сервера или пустую строку, если он выключен.
func (a *App) GRPCAddr() string {
	if a.grpcLis == nil {
		return ""
	}
	return a.grpcLis.Addr().String()
}

// Run обслуживает запросы до отмены ctx и выполняет graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	go func() {
		a.logger.Infof("HTTP API слушает %s", a.HTTPAddr())
		if err := a.httpSrv.Serve(a.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		a.logger.Infof("метрики доступны по адресу %s/metrics", a.MetricsAddr())
		if err := a.metricsSrv.Serve(a.metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	if a.grpcSrv != nil {
		go func() {
			a.logger.Infof("gRPC health сервер слушает %s", a.GRPCAddr())
			if err := a.grpcSrv.Serve(a.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	var workerWG sync.WaitGroup
	if a.worker != nil {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			a.worker.Run(workerCtx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("получен сигнал остановки, останавливаем сервис")
	case runErr = <-errCh:
		a.logger.WithError(runErr).Error("сервер завершился с ошибкой")
	}

	a.shutdown()
	stopWorker()
	workerWG.Wait()
	a.release()

	return runErr
}

func (a *App) shutdown() {
	if a.grpcSrv != nil {
		a.grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopped := make(chan struct{})
		go func() {
			a.grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			a.logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			a.grpcSrv.Stop()
		}
	}

	shutdownHTTP(a.httpSrv, a.logger)
	shutdownHTTP(a.metricsSrv, a.logger)
}

// release закрывает listeners, producer, хранилище и трейсинг.
func (a *App) release() {
	for _, lis := range []net.Listener{a.httpLis, a.metricsLis, a.grpcLis} {
		if lis != nil {
			_ = lis.Close()
		}
	}

	closeKafka(a.kafka, a.logger)
	a.kafka = nil

	if err := a.deps.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close storage")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("failed to shutdown tracer provider")
	}
}

func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(tracing.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	reflection.Register(srv)
	grpcMetrics.InitializeMetrics(srv)

	return srv, healthServer
}

func metricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
