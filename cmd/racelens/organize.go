package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/racelens/organizer/internal/cache"
	"github.com/racelens/organizer/internal/config"
	"github.com/racelens/organizer/internal/engine"
	"github.com/racelens/organizer/internal/logging"
	"github.com/racelens/organizer/internal/roster"
	"github.com/racelens/organizer/internal/vision"
)

var (
	organizeMode       string
	organizeOutput     string
	organizeCopyOrMove string
	organizeDryRun     bool
	organizeRecursive  bool
	organizeConfidence float64
)

var organizeCmd = &cobra.Command{
	Use:   "organize SOURCE_DIR",
	Short: "Classify and place photos from SOURCE_DIR",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrganize,
}

func init() {
	organizeCmd.Flags().StringVar(&organizeMode, "mode", "database", "classification mode: database or auto-cluster")
	organizeCmd.Flags().StringVarP(&organizeOutput, "output", "o", "", "output directory (default ./organized_photos)")
	organizeCmd.Flags().StringVar(&organizeCopyOrMove, "copy-or-move", "copy", "copy or move matched files")
	organizeCmd.Flags().BoolVar(&organizeDryRun, "dry-run", false, "plan placements without touching disk")
	organizeCmd.Flags().BoolVarP(&organizeRecursive, "recursive", "r", true, "recurse into subdirectories")
	organizeCmd.Flags().Float64Var(&organizeConfidence, "confidence", 0, "override the mode's default confidence threshold")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	mode := config.Mode(organizeMode)
	cfg := config.Defaults(mode)
	config.LoadEnv(cfg)

	overrides := &config.Config{
		SourceDir:           args[0],
		OutputDir:           organizeOutput,
		ConfidenceThreshold: organizeConfidence,
	}
	merged, err := config.Merge(cfg, overrides)
	if err != nil {
		return err
	}

	// Booleans are mergo's classic gotcha: a false CLI override is
	// indistinguishable from "not set" once it's a struct zero value, so
	// these are applied directly rather than through the zero-value-skipping
	// merge above.
	if cmd.Flags().Changed("copy-or-move") {
		merged.CopyOrMove = config.CopyOrMove(organizeCopyOrMove)
	}
	if cmd.Flags().Changed("dry-run") {
		merged.DryRun = organizeDryRun
	}
	if cmd.Flags().Changed("recursive") {
		merged.Recursive = organizeRecursive
	}

	if err := config.Validate(merged); err != nil {
		return err
	}

	visionClient := vision.New(vision.Config{
		BaseURL:       merged.VisionBaseURL,
		APIKey:        merged.VisionAPIKey,
		RetryAttempts: merged.RetryAttempts,
	})

	analysisCache, err := cache.Load(merged.CacheFile)
	if err != nil {
		return err
	}

	var r *roster.Roster
	if merged.Mode == config.ModeDatabase {
		r, err = roster.Load(merged.RosterFile)
		if err != nil {
			return err
		}
	}

	e := engine.New(merged, visionClient, analysisCache, r)
	log, err := e.Run(context.Background())
	if err != nil {
		return err
	}

	logging.Infof("organize: wrote organization_log.json to %s", merged.OutputDir)
	fmt.Printf("run %s: %d images processed\n", log.RunID, len(log.Images))
	return nil
}
