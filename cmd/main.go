package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/KromaEnergia/api-auth/internal/auth"
	"github.com/KromaEnergia/api-auth/internal/config"
	"github.com/KromaEnergia/api-auth/internal/ratelimit"
	"github.com/KromaEnergia/api-auth/internal/router"
	"github.com/KromaEnergia/api-auth/internal/usuario"
	"github.com/KromaEnergia/api-auth/internal/utils/db"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Configuração inválida: ", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("Erro ao criar logger: ", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.ConnectDataBase(ctx, cfg)
	if err != nil {
		logger.Fatal("Erro ao conectar no banco", zap.Error(err))
	}

	// AutoMigrate para os modelos
	if err := usuario.Migrate(database); err != nil {
		logger.Fatal("Erro no AutoMigrate", zap.Error(err))
	}
	if err := auth.Migrate(database); err != nil {
		logger.Fatal("Erro no AutoMigrate", zap.Error(err))
	}

	app, err := router.New(cfg, database, newRateStore(ctx, cfg, logger), logger)
	if err != nil {
		logger.Fatal("Erro ao montar a aplicação", zap.Error(err))
	}

	if cfg.MigrateLegacyTokens {
		n, err := app.RefreshStore.MigrateLegacy(ctx, 500)
		if err != nil {
			logger.Fatal("Erro na migração de tokens legados", zap.Error(err))
		}
		logger.Info("tokens legados migrados", zap.Int("total", n))
	}
	app.RefreshStore.StartCleanup(ctx, cfg.TokenCleanupInterval, cfg.RevokedTokenRetention)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Erro no shutdown", zap.Error(err))
		}
	}()

	logger.Info("Servidor rodando", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Erro no servidor", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Environment == config.EnvDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newRateStore usa Redis quando REDIS_URL está definida; sem ela o limite vale por processo.
func newRateStore(ctx context.Context, cfg config.Config, logger *zap.Logger) ratelimit.Store {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL não definida, rate limit em memória")
		return ratelimit.NewMemoryStore()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("REDIS_URL inválida", zap.Error(err))
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis indisponível na inicialização", zap.Error(err))
	}
	return ratelimit.NewRedisStore(client)
}
