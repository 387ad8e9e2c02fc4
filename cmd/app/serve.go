package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/patchsplit/internal/config"
	"github.com/local/patchsplit/internal/dispatcher"
	logpkg "github.com/local/patchsplit/internal/logger"
	"github.com/local/patchsplit/internal/metrics"
	"github.com/local/patchsplit/internal/queue"
	"github.com/local/patchsplit/internal/server"
	"github.com/local/patchsplit/internal/source"
	"github.com/local/patchsplit/internal/statuscheck"
	"github.com/local/patchsplit/internal/storage"
	"github.com/local/patchsplit/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP split service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := cfgpkg.FromEnv()
	initLogging(cfg, false)
	defer logpkg.Close()

	metrics.Init()

	// Queue and status store
	var (
		q      queue.Queue
		status store.StatusStore
		pinger statuscheck.Pinger
	)
	if cfg.Server.RedisURL != "" {
		rq, err := queue.NewRedisQueue(cfg.Server.RedisURL, "", "")
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		rs, err := store.NewRedisStatus(cfg.Server.RedisURL)
		if err != nil {
			rq.Close()
			log.Error().Err(err).Msg("failed to init redis status store")
			return err
		}
		q, status, pinger = rq, rs, rq
	} else {
		log.Warn().Msg("REDIS_URL not set; queue and job status kept in memory")
		q, status = queue.NewMemory(cfg.Server.QueueSize), store.NewMemoryStatus()
	}
	defer q.Close()
	defer status.Close()

	if err := os.MkdirAll(cfg.Server.OutputDir, 0o755); err != nil {
		return err
	}
	resolver := &source.Resolver{OutputDir: cfg.Server.OutputDir}
	ready := statuscheck.Options{Redis: pinger, S3Bucket: cfg.Server.S3Bucket, OutputDir: cfg.Server.OutputDir}
	if s3c, err := storage.NewS3Client(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("s3 unavailable; s3:// sources will fail")
	} else {
		resolver.Store = s3c
		ready.S3 = s3c
	}

	disp := dispatcher.New(dispatcher.Config{Concurrency: cfg.Server.DispatchConcurrency}, q, newSplitter(cfg), resolver, status)
	disp.Start()

	uploadDir := filepath.Join(cfg.Server.OutputDir, "uploads")
	mux := http.NewServeMux()
	server.New(server.Dependencies{
		Jobs:           disp,
		Status:         status,
		Ready:          statuscheck.New(ready),
		UploadDir:      uploadDir,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	}).RegisterRoutes(mux)

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Janitor for temp downloads and old uploads
	maxAge := cfg.Server.TempMaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	uploadMaxAge := cfg.Server.UploadMaxAge
	if uploadMaxAge <= 0 {
		uploadMaxAge = 24 * time.Hour
	}
	janitor := time.NewTicker(maxAge / 2)
	defer janitor.Stop()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
loop:
	for {
		select {
		case <-stop:
			break loop
		case err := <-errc:
			log.Error().Err(err).Msg("http server error")
			runErr = err
			break loop
		case <-janitor.C:
			if n := source.CleanupTemps("", maxAge); n > 0 {
				log.Info().Int("removed", n).Msg("removed stale temp downloads")
			}
			n := source.CleanupDirs(uploadDir, "", uploadMaxAge)
			n += source.CleanupDirs(cfg.Server.OutputDir, source.DownloadPrefix, uploadMaxAge)
			if n > 0 {
				log.Info().Int("removed", n).Msg("removed expired uploads and downloads")
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if err := disp.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("running jobs cancelled at shutdown")
	}
	log.Info().Msg("shutdown complete")
	return runErr
}
