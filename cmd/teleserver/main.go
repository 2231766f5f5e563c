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

	"github.com/fieme-one/Teleserver/internal/config"
	"github.com/fieme-one/Teleserver/internal/database"
	"github.com/fieme-one/Teleserver/internal/logging"
	"github.com/fieme-one/Teleserver/internal/server"
	"github.com/fieme-one/Teleserver/internal/supabase"
	"github.com/fieme-one/Teleserver/internal/telegram"
	"github.com/fieme-one/Teleserver/internal/users"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "teleserver",
		Short: "Telegram login verification backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newSignCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to dotenv file loaded before configuration")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("store-backend", defaults.GetString("store.backend"), "User store backend (supabase, database)")
	cmd.PersistentFlags().String("supabase-url", "", "Supabase project URL")
	cmd.PersistentFlags().String("supabase-table", defaults.GetString("supabase.table"), "Supabase users table")
	cmd.PersistentFlags().String("database-url", "", "Database URL (sqlite://path or postgres://...)")
	cmd.PersistentFlags().StringSlice("cors-allowed-origins", defaults.GetStringSlice("cors.allowed_origins"), "Allowed CORS origins")

	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "store.backend", "store-backend")
	bindFlag(cmd, "supabase.url", "supabase-url")
	bindFlag(cmd, "supabase.table", "supabase-table")
	bindFlag(cmd, "database.url", "database-url")
	bindFlag(cmd, "cors.allowed_origins", "cors-allowed-origins")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	verifier, err := telegram.NewVerifier(appConfig.TelegramBotToken)
	if err != nil {
		logger.Error("refusing to start", zap.Error(err))
		return err
	}

	store, closeStore, err := openUserStore(appConfig, logger)
	if err != nil {
		logger.Error("user store unavailable", zap.String("backend", appConfig.StoreBackend), zap.Error(err))
		return err
	}
	defer closeStore()

	loginService, err := users.NewService(users.ServiceConfig{
		Store: store,
		Normalizer: users.NewNormalizer(users.NormalizerConfig{
			MaxFieldLength: appConfig.MaxFieldLength,
			Clock:          time.Now,
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Verifier:       verifier,
		LoginService:   loginService,
		Logger:         logger,
		AllowedOrigins: appConfig.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         appConfig.HTTPAddress,
		Handler:      handler,
		ReadTimeout:  appConfig.HTTPReadTimeout,
		WriteTimeout: appConfig.HTTPWriteTimeout,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("store_backend", appConfig.StoreBackend))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func openUserStore(appConfig config.AppConfig, logger *zap.Logger) (users.Store, func(), error) {
	switch appConfig.StoreBackend {
	case config.StoreBackendDatabase:
		db, err := database.Open(appConfig.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store, err := database.NewUserStore(db)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return store, func() { _ = sqlDB.Close() }, nil
	default:
		store, err := supabase.NewUserStore(supabase.Config{
			URL:     appConfig.SupabaseURL,
			Key:     appConfig.SupabaseKey,
			Table:   appConfig.SupabaseTable,
			Timeout: appConfig.SupabaseTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
