package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/patchsplit/internal/config"
	"github.com/local/patchsplit/internal/detect"
	logpkg "github.com/local/patchsplit/internal/logger"
	"github.com/local/patchsplit/internal/segment"
	"github.com/local/patchsplit/internal/source"
	"github.com/local/patchsplit/internal/storage"
)

func runSplit(cmd *cobra.Command, args []string) error {
	cfg := cfgpkg.FromEnv()
	initLogging(cfg, true)
	defer logpkg.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ref := args[0]
	mode := detect.ModeEither
	if len(args) > 1 {
		mode = detect.ParseMode(args[1])
	}

	resolver := &source.Resolver{OutputDir: cfg.Server.OutputDir}
	if strings.HasPrefix(ref, "s3://") {
		s3c, err := storage.NewS3Client(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to init s3 client")
			return err
		}
		resolver.Store = s3c
	}

	m, err := splitRef(ctx, resolver, newSplitter(cfg), ref, mode)
	if err != nil {
		log.Error().Err(err).Str("source", ref).Strs("written", m).Msg("split failed")
		return err
	}
	return printManifest(cmd.OutOrStdout(), m)
}

// splitRef fetches ref, splits it and publishes the segments. On failure the
// segments written so far are returned with the error.
func splitRef(ctx context.Context, r *source.Resolver, s *segment.Splitter, ref string, mode detect.Mode) (segment.Manifest, error) {
	src, err := r.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer src.Cleanup()

	m, err := s.Split(ctx, src.Local, mode)
	if err != nil {
		partial, _ := r.Publish(context.WithoutCancel(ctx), src, m)
		return partial, err
	}
	return r.Publish(ctx, src, m)
}

// printManifest writes the manifest as a single JSON array line.
func printManifest(w io.Writer, m segment.Manifest) error {
	if m == nil {
		m = segment.Manifest{}
	}
	return json.NewEncoder(w).Encode(m)
}
