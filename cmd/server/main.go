package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"formvoice/agent/internal/api"
	"formvoice/agent/internal/config"
	"formvoice/agent/internal/health"
	"formvoice/agent/internal/incidents"
	"formvoice/agent/internal/llm"
	"formvoice/agent/internal/logging"
	"formvoice/agent/internal/resilience"
	"formvoice/agent/internal/resolve"
	"formvoice/agent/internal/session"
	"formvoice/agent/internal/sink"
	"formvoice/agent/internal/store"
	"formvoice/agent/internal/stt"
	"formvoice/agent/internal/transport"
	"formvoice/agent/internal/types"
)

const serviceName = "formvoice.Agent"

type answerSink interface {
	Record(ctx context.Context, sessionID string, a types.Answer) error
	Answers(ctx context.Context, sessionID string) ([]types.Answer, error)
	Close() error
}

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st := store.New()

	// Incident log
	db, err := incidents.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	inc, err := incidents.NewStore(db, logger)
	if err != nil {
		return err
	}

	// Answer sink
	var answers answerSink = sink.NewMemory()
	var redisPing health.Pinger
	if cfg.Redis.URL != "" {
		r, err := sink.FromURL(cfg.Redis.URL, cfg.Redis.TTL, logger)
		if err != nil {
			return err
		}
		if err := r.Ping(ctx); err != nil {
			logger.Warn("redis not reachable at startup", zap.Error(err))
		}
		answers, redisPing = r, r
	} else {
		logger.Warn("REDIS_URL not set; answers kept in memory")
	}
	defer answers.Close()

	// Free-text extraction and question generation
	var extractor resolve.Extractor
	var questions api.QuestionGenerator
	assistant, err := llm.New(ctx, cfg.LLMOptions(), logger)
	if err != nil {
		return err
	}
	if assistant != nil {
		extractor, questions = assistant, assistant
	} else {
		logger.Warn("LLM_API_KEY not set; free-text fields will ask again")
	}

	resolver := resolve.New(extractor,
		resolve.WithCountryCode(cfg.Session.PhoneCountryCode),
		resolve.WithLogger(logger),
	)
	transcriber := stt.Guard(
		stt.NewDeepgram(cfg.DeepgramConfig(), cfg.Deepgram.APIKey, logger),
		resilience.NewBreaker("deepgram", logger),
	)

	reg := transport.NewRegistry()
	wss := transport.NewServer(st, reg, transport.Options{
		Session:        cfg.SessionConfig(),
		OriginPatterns: cfg.Session.OriginPatterns,
		TokenSecret:    cfg.Session.TokenSecret,
		TokenSkew:      cfg.Session.TokenSkew,
	}, session.Deps{
		Transcriber: transcriber,
		Resolver:    resolver,
		Sink:        answers,
		Events:      st,
		Incidents:   inc,
	}, logger)

	checkDeps := func(ctx context.Context) health.HealthStatus {
		return health.CheckAll(ctx, health.Deps{
			DeepgramKey: cfg.Deepgram.APIKey,
			LLMProvider: cfg.LLM.Provider,
			LLMReady:    assistant != nil,
			Redis:       redisPing,
			DB:          inc,
		})
	}

	h := api.NewHandlers(st, api.Deps{
		Questions:   questions,
		Answers:     answers,
		Incidents:   inc,
		Active:      reg,
		Health:      checkDeps,
		// Tokens are minted and checked with the same secret
		TokenSecret: cfg.Session.TokenSecret,
		TokenTTL:    cfg.Session.TokenTTL,
		Logger:      logger,
	})
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.HandleFunc("/stt", wss.HandleSTT)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           logging.Middleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// gRPC health service with keepalive for fast death detection
	kap := keepalive.ServerParameters{
		MaxConnectionIdle:     2 * time.Minute,
		MaxConnectionAge:      15 * time.Minute,
		MaxConnectionAgeGrace: 30 * time.Second,
		Time:                  30 * time.Second,
		Timeout:               10 * time.Second,
	}
	kasp := keepalive.EnforcementPolicy{
		MinTime:             10 * time.Second,
		PermitWithoutStream: true,
	}
	gs := grpc.NewServer(grpc.KeepaliveParams(kap), grpc.KeepaliveEnforcementPolicy(kasp))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	gl, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	go func() {
		logger.Info("grpc health listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := gs.Serve(gl); err != nil {
			logger.Warn("grpc serve", zap.Error(err))
		}
	}()

	// Health/ready probes
	var ready atomic.Bool
	ready.Store(true)
	probes := &http.Server{Addr: cfg.Server.ProbeAddr, Handler: probeMux(&ready), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("probes/metrics listening", zap.String("addr", cfg.Server.ProbeAddr))
		if err := probes.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("probe server", zap.Error(err))
		}
	}()

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received; draining")
	ready.Store(false)
	hs.Shutdown()
	n := reg.CloseAll("server shutting down")
	logger.Info("client sessions closed", zap.Int("sessions", n))

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	_ = probes.Shutdown(sctx)
	gs.GracefulStop()
	return nil
}

func probeMux(ready *atomic.Bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok\n")) })
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready.Load() {
			w.Write([]byte("ok\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
