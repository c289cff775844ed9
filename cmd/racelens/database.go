package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/racelens/organizer/internal/config"
	"github.com/racelens/organizer/internal/report"
	"github.com/racelens/organizer/internal/roster"
	"github.com/racelens/organizer/internal/vision"
)

var (
	databaseRosterFile string
	addNotes           string
	statsFromLog       string
)

var databaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Manage the subject roster used by database mode",
}

var databaseAddCmd = &cobra.Command{
	Use:   "add NAME REFERENCE_PHOTO",
	Short: "Register a subject from a reference photo",
	Args:  cobra.ExactArgs(2),
	RunE:  runDatabaseAdd,
}

var databaseRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a registered subject",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatabaseRemove,
}

var databaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered subjects",
	Args:  cobra.NoArgs,
	RunE:  runDatabaseList,
}

var databaseShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show one subject's roster entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatabaseShow,
}

var databaseValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report subjects whose reference photo no longer exists",
	Args:  cobra.NoArgs,
	RunE:  runDatabaseValidate,
}

var databaseStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize roster size and reference-path validity",
	Args:  cobra.NoArgs,
	RunE:  runDatabaseStats,
}

func init() {
	databaseCmd.PersistentFlags().StringVar(&databaseRosterFile, "roster-file", "roster.yaml", "roster YAML file")
	databaseAddCmd.Flags().StringVar(&addNotes, "notes", "", "free-text notes for this subject")
	databaseStatsCmd.Flags().StringVar(&statsFromLog, "from-log", "", "output directory of a prior organize run, for per-category match counts")

	databaseCmd.AddCommand(databaseAddCmd)
	databaseCmd.AddCommand(databaseRemoveCmd)
	databaseCmd.AddCommand(databaseListCmd)
	databaseCmd.AddCommand(databaseShowCmd)
	databaseCmd.AddCommand(databaseValidateCmd)
	databaseCmd.AddCommand(databaseStatsCmd)
}

func loadRoster() (*roster.Roster, error) {
	return roster.Load(databaseRosterFile)
}

func visionClientFromEnv() *vision.Client {
	cfg := config.Defaults(config.ModeDatabase)
	config.LoadEnv(cfg)
	return vision.New(vision.Config{BaseURL: cfg.VisionBaseURL, APIKey: cfg.VisionAPIKey})
}

func runDatabaseAdd(cmd *cobra.Command, args []string) error {
	name, referencePath := args[0], args[1]

	raw, err := os.ReadFile(referencePath)
	if err != nil {
		return err
	}
	imageBase64 := base64.StdEncoding.EncodeToString(raw)

	r, err := loadRoster()
	if err != nil {
		return err
	}

	if err := r.Add(visionClientFromEnv(), name, referencePath, addNotes, imageBase64); err != nil {
		return err
	}
	if err := r.Save(); err != nil {
		return err
	}

	fmt.Printf("registered %q from %s\n", name, referencePath)
	return nil
}

func runDatabaseRemove(cmd *cobra.Command, args []string) error {
	r, err := loadRoster()
	if err != nil {
		return err
	}
	if err := r.Remove(args[0]); err != nil {
		return err
	}
	if err := r.Save(); err != nil {
		return err
	}
	fmt.Printf("removed %q\n", args[0])
	return nil
}

func runDatabaseList(cmd *cobra.Command, args []string) error {
	r, err := loadRoster()
	if err != nil {
		return err
	}
	for _, e := range r.List() {
		fmt.Println(e.Name)
	}
	return nil
}

func runDatabaseShow(cmd *cobra.Command, args []string) error {
	r, err := loadRoster()
	if err != nil {
		return err
	}
	e, ok := r.Get(args[0])
	if !ok {
		return fmt.Errorf("subject %q is not registered", args[0])
	}
	fmt.Printf("name: %s\ndescription: %s\nreference_paths: %v\nnotes: %s\ncreated_at: %s\n",
		e.Name, e.Description, e.ReferencePaths, e.Notes, e.CreatedAt)
	return nil
}

func runDatabaseValidate(cmd *cobra.Command, args []string) error {
	r, err := loadRoster()
	if err != nil {
		return err
	}
	missing := r.Validate()
	if len(missing) == 0 {
		fmt.Println("all reference photos present")
		return nil
	}
	for _, name := range missing {
		fmt.Printf("missing reference photo: %s\n", name)
	}
	return nil
}

// runDatabaseStats reports roster size and reference-path validity — a
// supplemented feature (SPEC_FULL.md §9), grounded on the teacher's
// batch-summary logging pattern in internal/rpc/images.go.
func runDatabaseStats(cmd *cobra.Command, args []string) error {
	r, err := loadRoster()
	if err != nil {
		return err
	}
	total := len(r.List())
	missing := len(r.Validate())
	fmt.Printf("%d registered subjects, %d with missing reference photos, %d valid\n", total, missing, total-missing)

	if statsFromLog == "" {
		return nil
	}
	return printCategoryHistogram(statsFromLog)
}

// printCategoryHistogram reads organization_log.json from a prior run and
// prints its per-category counts as a proxy for match-confidence
// distribution, since the log itself aggregates by outcome category rather
// than raw score.
func printCategoryHistogram(outputDir string) error {
	raw, err := os.ReadFile(filepath.Join(outputDir, "organization_log.json"))
	if err != nil {
		return err
	}
	var l report.Log
	if err := json.Unmarshal(raw, &l); err != nil {
		return err
	}

	categories := make([]string, 0, len(l.CategoryCounts))
	for cat := range l.CategoryCounts {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	fmt.Printf("most recent run %s:\n", l.RunID)
	for _, cat := range categories {
		fmt.Printf("  %-20s %d\n", cat, l.CategoryCounts[cat])
	}
	return nil
}
