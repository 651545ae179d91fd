package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"google.golang.org/grpc"

	"github.com/payorch/payorch-backend-sqs/internal/cache"
	"github.com/payorch/payorch-backend-sqs/internal/connector"
	"github.com/payorch/payorch-backend-sqs/internal/core"
	payorchgrpc "github.com/payorch/payorch-backend-sqs/internal/grpc"
	"github.com/payorch/payorch-backend-sqs/internal/metrics"
	"github.com/payorch/payorch-backend-sqs/internal/routing"
	"github.com/payorch/payorch-backend-sqs/internal/scheduler"
	"github.com/payorch/payorch-backend-sqs/internal/server"
	"github.com/payorch/payorch-backend-sqs/internal/state"
	"github.com/payorch/payorch-backend-sqs/internal/tracker"
	"github.com/payorch/payorch-backend-sqs/internal/webhook"
	"github.com/payorch/payorch-backend-sqs/internal/workflows"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := server.LoadConfig()
	if cfg.APIKey == "" && !cfg.AllowInsecureNoAuth {
		logger.Error("refusing to start without API authentication", "hint", "set PAYORCH_API_KEY or PAYORCH_ALLOW_INSECURE_NO_AUTH=true for local development")
		os.Exit(1)
	}
	if cfg.AllowInsecureNoAuth {
		logger.Warn("running without authentication, intended for local development only")
	}

	// Configure AWS SDK
	awsCfg, err := buildAWSConfig(cfg)
	if err != nil {
		logger.Error("failed to configure AWS", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	// DynamoDB state store
	store := state.NewDynamoDBStore(dynamoClient, cfg.DynamoDBTable)
	if err := store.EnsureTable(context.Background()); err != nil {
		logger.Error("failed to ensure DynamoDB table", "error", err)
		os.Exit(1)
	}
	logger.Info("DynamoDB state store ready", "table", cfg.DynamoDBTable)

	// Cache invalidation channel
	invalidationURL, err := cache.EnsureQueue(context.Background(), sqsClient, cfg.SQSQueuePrefix+"-invalidations")
	if err != nil {
		logger.Error("failed to ensure invalidation queue", "error", err)
		os.Exit(1)
	}
	invalidator := cache.NewSQSPublisher(sqsClient, invalidationURL)
	invalidator.SetLogger(logger)

	// Process tracker over SQS
	trackerURL, err := tracker.EnsureQueue(context.Background(), sqsClient, cfg.SQSQueuePrefix+"-process-tracker")
	if err != nil {
		logger.Error("failed to ensure tracker queue", "error", err)
		os.Exit(1)
	}
	trk := tracker.New(sqsClient, store, trackerURL)
	trk.SetLogger(logger)

	// Connector adapters and sync workflow
	registry := connector.NewRegistry()
	client := connector.NewClient(registry, connector.NewHTTPTransport(nil))
	schedules := workflows.NewScheduleResolver(store)
	schedules.SetLogger(logger)
	sender := webhook.NewHTTPSender(nil)

	syncWorkflow := workflows.NewPaymentSyncWorkflow(store, trk, client, schedules, sender)
	syncWorkflow.SetLogger(logger)

	consumer := tracker.NewConsumer(sqsClient, store, trackerURL)
	consumer.SetLogger(logger)
	consumer.RegisterWorkflow(core.TaskPaymentsSync, syncWorkflow)
	consumer.Start()
	defer consumer.Stop()

	metrics.Init(core.Version, "sqs")

	logger.Info("payorch backend ready",
		"prefix", cfg.SQSQueuePrefix,
		"region", cfg.AWSRegion,
	)

	// Background promotion and recovery loops
	sched := scheduler.New(trk, logger)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Routing configuration store behind the HTTP API
	routingStore := routing.NewStore(store, store, invalidator)
	routingStore.SetLogger(logger)

	router := server.NewRouter(store, routingStore, logger, cfg)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("payorch server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// gRPC health server
	grpcServer := grpc.NewServer()
	payorchgrpc.Register(grpcServer, store)

	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			logger.Error("failed to listen for gRPC", "port", cfg.GRPCPort, "error", err)
			os.Exit(1)
		}
		logger.Info("payorch gRPC server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	sched.Stop()
	consumer.Stop()
	grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func buildAWSConfig(cfg server.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}

	// For LocalStack or custom endpoints
	if cfg.AWSEndpointURL != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.AWSEndpointURL,
					HostnameImmutable: true,
					PartitionID:       "aws",
				}, nil
			},
		)
		opts = append(opts,
			config.WithEndpointResolverWithOptions(customResolver),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
		)
	}

	return config.LoadDefaultConfig(context.Background(), opts...)
}
