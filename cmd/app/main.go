package main

import (
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/local/patchsplit/internal/config"
	"github.com/local/patchsplit/internal/detect"
	logpkg "github.com/local/patchsplit/internal/logger"
	"github.com/local/patchsplit/internal/segment"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "app <source.pdf> [patch|barcode]",
	Short: "Split scanned PDF batches at divider pages",
	Long: `app renders every page of a PDF, detects divider sheets (a printed patch or a
barcode) and writes the pages between dividers as {stem}_part{N}.pdf next to
the source. The list of written files is printed as JSON on stdout.

The source may be a local path, file://, http(s):// or s3://bucket/key.
Without a mode, a page with either mark is a divider.`,
	Version:       version,
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSplit,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cfg cfgpkg.Config, stderr bool) {
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		Stderr:       stderr,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
}

// newSplitter builds the segmentation engine from configuration.
func newSplitter(cfg cfgpkg.Config) *segment.Splitter {
	patch := detect.NewPatchDetector(detect.PatchOptions{
		Threshold: uint8(cfg.Detect.PatchThreshold),
		MinArea:   cfg.Detect.PatchMinArea,
		MinAspect: cfg.Detect.PatchMinAspect,
		MaxAspect: cfg.Detect.PatchMaxAspect,
	})
	return segment.New(segment.Options{
		Classifier: detect.NewClassifier(patch, nil),
		Workers:    cfg.Split.Workers,
	})
}
