// Package main is the entry point for the sentrydesk decision core.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sentrydesk/internal/audit"
	"sentrydesk/internal/behavior"
	"sentrydesk/internal/calibrator"
	"sentrydesk/internal/config"
	"sentrydesk/internal/decisionflow"
	"sentrydesk/internal/explain"
	sentryhttp "sentrydesk/internal/http"
	"sentrydesk/internal/metrics"
	"sentrydesk/internal/network"
	"sentrydesk/internal/policy"
	"sentrydesk/internal/risk"
	"sentrydesk/internal/router"
	"sentrydesk/internal/store"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting sentrydesk decision core",
		zap.String("version", version),
		zap.Int("port", cfg.Port),
	)

	metricsRecorder, metricsRegistry, err := buildMetrics(cfg)
	if err != nil {
		return fmt.Errorf("failed to build metrics: %w", err)
	}

	behaviorStore, err := buildBehaviorStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to build behavioral profile store: %w", err)
	}

	networkProvider, err := buildNetworkProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to build network context provider: %w", err)
	}

	policyCounters, err := buildPolicyCounters(cfg)
	if err != nil {
		return fmt.Errorf("failed to build policy counters: %w", err)
	}

	auditStore, err := buildAuditStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to build audit store: %w", err)
	}

	var artifact *risk.Artifact
	if cfg.UseModelPath {
		artifact, err = risk.LoadArtifact(cfg.ModelArtifactDir)
		if err != nil {
			return fmt.Errorf("failed to load risk model artifact: %w", err)
		}
		logger.Info("loaded risk model artifact", zap.String("dir", cfg.ModelArtifactDir))
	}

	riskEvaluator := risk.New(risk.Config{
		Logger:              logger,
		Artifact:            artifact,
		FallbackToHeuristic: true,
	})
	behaviorEvaluator := behavior.New(behaviorStore, behavior.MethodMahalanobis)
	networkEvaluator := network.New(networkProvider)

	agentRouter := router.New(router.Config{
		Risk:             riskEvaluator,
		Behavior:         behaviorEvaluator,
		Network:          networkEvaluator,
		Calib:            calibrator.New(),
		Explain:          explain.New(),
		EvaluatorTimeout: cfg.EvaluatorTimeout,
		Logger:           logger,
	})

	policyDoc, err := loadPolicyDocument(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load policy document: %w", err)
	}
	policyEngine := policy.New(policyDoc, policyCounters)

	auditService := audit.NewService(auditStore, audit.WriterConfig{
		QueueCapacity:   cfg.AuditQueueCapacity,
		SubmitTimeout:   2 * time.Second,
		DrainDeadline:   cfg.AuditDrainDeadline,
		OnFullSyncWrite: cfg.AuditOnFullBlocking,
		Logger:          logger,
		Metrics:         metricsRecorder,
	})

	if metadataIndex, err := buildMetadataIndex(cfg); err != nil {
		return fmt.Errorf("failed to build operational metadata index: %w", err)
	} else if metadataIndex != nil {
		auditService = auditService.WithMetadataIndex(metadataIndex)
	}

	flow := decisionflow.New(decisionflow.Config{
		Router:  agentRouter,
		Policy:  policyEngine,
		Audit:   auditService,
		Logger:  logger,
		Metrics: metricsRecorder,
	})

	httpRouter := sentryhttp.NewRouter(sentryhttp.RouterConfig{
		Logger:          logger,
		Flow:            flow,
		RequestMaxBytes: int64(cfg.RequestMaxBytes),
		ReadinessChecks: func() map[string]string {
			return map[string]string{
				"policy_document": "ok",
			}
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      httpRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.EnableMetrics && metricsRegistry != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}
		go func() {
			logger.Info("metrics server listening", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctx)
	}
	if err := auditService.Shutdown(ctx); err != nil {
		logger.Error("audit ledger shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

func loadPolicyDocument(cfg *config.Config, logger *zap.Logger) (*policy.Document, error) {
	doc, err := policy.LoadDocument(cfg.PolicyDocumentPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("no policy document found, using built-in default",
				zap.String("path", cfg.PolicyDocumentPath))
			return policy.DefaultDocument(), nil
		}
		return nil, err
	}
	return doc, nil
}

func buildMetrics(cfg *config.Config) (metrics.Recorder, *prometheus.Registry, error) {
	if !cfg.EnableMetrics {
		return metrics.Noop{}, nil, nil
	}
	reg := prometheus.NewRegistry()
	return metrics.NewPrometheus(reg), reg, nil
}

func buildBehaviorStore(cfg *config.Config) (behavior.Store, error) {
	switch cfg.BehaviorStoreBackend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return store.NewBehavioralProfileStore(client, cfg.DDBTableProfiles), nil
	default:
		return behavior.NewInMemoryStore(), nil
	}
}

func buildNetworkProvider(cfg *config.Config) (network.Provider, error) {
	switch cfg.NetworkStoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedisNetworkProvider(client, cfg.NetworkRedisPrefix, cfg.NetworkRedisTTL), nil
	default:
		return network.NewInMemoryProvider(nil), nil
	}
}

func buildPolicyCounters(cfg *config.Config) (policy.Counters, error) {
	switch cfg.PolicyCountersBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return store.NewRedisPolicyCounters(client, cfg.PolicyRedisPrefix), nil
	default:
		return nil, nil
	}
}

func buildMetadataIndex(cfg *config.Config) (audit.MetadataIndex, error) {
	switch cfg.MetadataIndexBackend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return store.NewMetadataIndex(client, cfg.DDBTableMetadata), nil
	default:
		return nil, nil
	}
}

func buildAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.AuditStoreBackend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := store.NewS3Client(s3.NewFromConfig(awsCfg), cfg.AuditS3Bucket)
		return store.NewS3PartitionStore(client, cfg.AuditS3Prefix), nil
	default:
		return audit.NewFileStore(cfg.AuditPartitionDir)
	}
}

func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}
