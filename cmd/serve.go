package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/capture"
	"github.com/kozaktomas/facecheck/internal/config"
	"github.com/kozaktomas/facecheck/internal/database"
	"github.com/kozaktomas/facecheck/internal/database/postgres"
	"github.com/kozaktomas/facecheck/internal/inference"
	"github.com/kozaktomas/facecheck/internal/logger"
	"github.com/kozaktomas/facecheck/internal/metrics"
	"github.com/kozaktomas/facecheck/internal/photo"
	"github.com/kozaktomas/facecheck/internal/pipeline"
	"github.com/kozaktomas/facecheck/internal/status"
	"github.com/kozaktomas/facecheck/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server and the detection pipeline",
	Long: `Start the facecheck web server.
The browser client streams webcam frames to the server, which matches them
against the reference photo using the inference server at INFERENCE_URL.
Match history is recorded to PostgreSQL when DATABASE_URL is set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// initHistory connects the optional match history store.
func initHistory(cfg *config.Config, log *zap.Logger) database.HistoryWriter {
	if cfg.Database.URL == "" {
		log.Info("match history disabled, DATABASE_URL is not set")
		return nil
	}
	if err := postgres.Initialize(&cfg.Database); err != nil {
		log.Warn("match history unavailable", zap.Error(err))
		return nil
	}
	writer, err := database.GetHistoryWriter(context.Background())
	if err != nil {
		log.Warn("match history unavailable", zap.Error(err))
		return nil
	}
	log.Info("match history enabled (PostgreSQL)")
	return writer
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck // nothing to do if stderr is gone

	metrics.RegisterPipelineMetrics()

	history := initHistory(cfg, log)
	defer postgres.Shutdown() //nolint:errcheck // best effort on exit

	photos, err := photo.NewStore(cfg.Photo.DefaultPath)
	if err != nil {
		return fmt.Errorf("loading default photo: %w", err)
	}
	frames := capture.NewBuffer()
	board := status.NewBoard()
	client := inference.NewClient(cfg.Inference.URL, cfg.Inference.ModelsBaseURL, cfg.Inference.Models, cfg.Inference.Timeout)

	loops := pipeline.NewLoops(client, frames, photos, board, history, pipeline.LoopOptions{
		Video:             cfg.Detectors.Video,
		Image:             cfg.Detectors.Image,
		DistanceThreshold: cfg.Matcher.DistanceThreshold,
		PhotoInterval:     cfg.Loop.PhotoInterval,
		VideoInterval:     cfg.Loop.VideoInterval,
	}, log.Named("loops"))
	supervisor := pipeline.NewSupervisor(client, frames, photos, board, loops, pipeline.SupervisorOptions{
		RestartDelay:   cfg.Loop.RestartDelay,
		AcquireTimeout: cfg.Capture.AcquireTimeout,
	}, log.Named("supervisor"))

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, web.Deps{
		Frames:   frames,
		Photos:   photos,
		Board:    board,
		Pipeline: supervisor,
		Logger:   log.Named("http"),
	}, port, host)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		supervisor.Run(ctx) //nolint:errcheck // Run only returns on cancellation
	}()

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting facecheck on http://%s:%d\n", host, port)
	fmt.Printf("Inference server: %s\n", cfg.Inference.URL)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		stop()
		<-pipelineDone
		return fmt.Errorf("starting server: %w", err)
	}
	<-pipelineDone
	return nil
}
