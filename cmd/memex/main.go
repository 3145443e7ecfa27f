package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memexhq/memex/internal/profile"
	"github.com/memexhq/memex/plugin/ai"
	"github.com/memexhq/memex/plugin/ocr"
	"github.com/memexhq/memex/plugin/temporal"
	apiv1 "github.com/memexhq/memex/server/router/api/v1"
	"github.com/memexhq/memex/server/runner/process"
	"github.com/memexhq/memex/server/service/capture"
	"github.com/memexhq/memex/server/service/search"
	"github.com/memexhq/memex/store"
	"github.com/memexhq/memex/store/db/postgres"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "memex",
	Short: "Personal memex capture pipeline and hybrid search server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

func init() {
	// A missing .env file is fine; environment variables win either way.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().String("mode", "dev", `server mode, can be "dev" or "prod"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of the server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")

	for _, flag := range []string{"mode", "addr", "port", "data", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("memex")
	viper.AutomaticEnv()
}

func serve() error {
	prof := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		DSN:     viper.GetString("dsn"),
		Version: version,
	}
	prof.FromEnv()
	if err := prof.Validate(); err != nil {
		return err
	}

	logger := newLogger(prof)
	slog.SetDefault(logger)

	driver, err := postgres.NewDB(prof)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := driver.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	st := store.New(driver, prof)
	defer st.Close()

	var ocrService capture.OCRService
	if prof.OCREnabled {
		ocrService = ocr.NewClient(&ocr.Config{
			TesseractPath: prof.TesseractPath,
			DataPath:      prof.TessdataPath,
			Languages:     prof.OCRLanguages,
		})
	}

	var embedder ai.EmbeddingService
	if prof.IsEmbeddingEnabled() {
		embedder, err = ai.NewEmbeddingService(&ai.EmbeddingConfig{
			Provider:   prof.EmbeddingProvider,
			APIKey:     prof.EmbeddingAPIKey,
			BaseURL:    prof.EmbeddingBaseURL,
			Model:      prof.EmbeddingModel,
			Dimensions: prof.EmbeddingDimensions,
		})
		if err != nil {
			return fmt.Errorf("failed to create embedding service: %w", err)
		}
	} else {
		slog.Warn("embedding backend not configured, semantic search is unavailable")
	}

	extractor := temporal.NewExtractor(temporal.NewRuleParser())
	processor := capture.NewProcessor(st, ocrService, embedder, extractor)
	searchService := search.NewService(st, embedder)
	runner := process.NewRunner(st, processor, time.Duration(prof.RunnerIntervalSeconds)*time.Second)

	go runner.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	apiService := apiv1.NewAPIV1Service(prof, st, processor, searchService, runner, logger)
	apiService.Register(e)

	listen := fmt.Sprintf("%s:%d", prof.Addr, prof.Port)
	go func() {
		slog.Info("server started", "address", listen, "version", version, "mode", prof.Mode)
		if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped unexpectedly", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}
	return nil
}

func newLogger(prof *profile.Profile) *slog.Logger {
	level := slog.LevelInfo
	if prof.IsDev() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if prof.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
