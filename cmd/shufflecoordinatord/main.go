// Command shufflecoordinatord is the shuffle coordinator's process
// entrypoint: it loads configuration, wires storage/chain/auth/rate-limit
// dependencies, and serves the ShuffleService gRPC API plus an admin HTTP
// surface (metrics, health) until a termination signal arrives.
//
// Grounded on the teacher's cmd/v1/session/main.go for the godotenv-then-
// wire-then-serve-then-graceful-shutdown shape, adapted from a single Gin
// HTTP server to a gRPC server plus a separate admin HTTP server, since
// this coordinator's primary surface is gRPC rather than HTTP.
package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/shuffle-protocol/shuffle-coordinator/internal/authn"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/chain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/config"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/domain"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/health"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/logging"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/middleware"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/pb"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/ratelimit"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/registry"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/rpc"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/storage"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/tracing"
	"github.com/shuffle-protocol/shuffle-coordinator/internal/waiter"
)

func main() {
	// Load .env for local development; try a few candidate paths the same
	// way the teacher's main.go does, since this binary may be invoked from
	// a few different working directories during development.
	envPaths := []string{".env", "../../.env", "../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment file", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("no .env file found in any expected location, relying on process environment")
	}

	cfg, err := config.ValidateEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info(ctx, "configuration loaded", summaryFields(cfg.Summary())...)

	tp, err := tracing.InitTracer(ctx, "shuffle-coordinator", cfg.OTLPCollectorAddr)
	if err != nil {
		logging.Error(ctx, "failed to initialize tracer", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logging.Warn(ctx, "tracer shutdown error", zap.Error(err))
		}
	}()

	var store domain.Storage
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		redisStore, err := storage.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Error(ctx, "failed to connect to redis", zap.Error(err))
			os.Exit(1)
		}
		store = redisStore
		logging.Info(ctx, "using redis-backed storage")
	} else {
		store = storage.NewMemory()
		logging.Info(ctx, "using in-memory storage (single instance only)")
	}

	submitterKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.ChainSubmitterKey, "0x"))
	if err != nil {
		logging.Error(ctx, "invalid chain submitter key", zap.Error(err))
		os.Exit(1)
	}
	ethConnector, err := chain.NewEthConnector(cfg.ChainRPCAddr, common.HexToAddress(cfg.ContractAddr), submitterKey)
	if err != nil {
		logging.Error(ctx, "failed to connect to chain rpc", zap.Error(err))
		os.Exit(1)
	}
	chainConnector := chain.NewGobreakerConnector(ethConnector)

	tokens := authn.NewTokenService([]byte(cfg.TokenSecret), cfg.TokenTTL)

	w, err := waiter.New(store, cfg.MinRoomSize)
	if err != nil {
		logging.Error(ctx, "failed to construct waiter", zap.Error(err))
		os.Exit(1)
	}

	mintRoomAccess := func(utxoID domain.UTXOID, roomID uuid.UUID) (string, error) {
		return tokens.IssueRoomAccess(utxoID, roomID)
	}
	reg := registry.New(ctx, store, chainConnector, cfg.ShuffleRoundDeadline, mintRoomAccess)

	limiter, err := ratelimit.New(cfg.RateLimitJoinIP, cfg.RateLimitJoinOwner, redisClient)
	if err != nil {
		logging.Error(ctx, "failed to construct rate limiter", zap.Error(err))
		os.Exit(1)
	}

	facade := rpc.New(w, reg, chainConnector, store, tokens, limiter)
	healthSrv := health.NewServer(store, chainConnector)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(middleware.CorrelationIDUnaryInterceptor, limiter.JoinShuffleRoomInterceptor),
		grpc.ChainStreamInterceptor(middleware.CorrelationIDStreamInterceptor),
	)
	pb.RegisterShuffleServiceServer(grpcServer, facade)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logging.Error(ctx, "failed to bind listen address", zap.String("listen_addr", cfg.ListenAddr), zap.Error(err))
		os.Exit(1)
	}

	go func() {
		logging.Info(ctx, "grpc server starting", zap.String("listen_addr", cfg.ListenAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logging.Error(ctx, "grpc server exited with error", zap.Error(err))
		}
	}()

	adminRouter := gin.New()
	adminRouter.Use(gin.Recovery())
	adminRouter.Use(cors.New(cors.DefaultConfig()))
	adminRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))
	adminRouter.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminRouter}
	go func() {
		logging.Info(ctx, "admin server starting", zap.String("admin_addr", cfg.AdminAddr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "admin server exited with error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info(context.Background(), "shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn(context.Background(), "admin server forced shutdown", zap.Error(err))
	}

	logging.Info(context.Background(), "shuffle coordinator exiting")
}

// summaryFields converts config.Config.Summary's log-safe map into zap
// fields for structured logging at startup.
func summaryFields(summary map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(summary))
	for k, v := range summary {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}
