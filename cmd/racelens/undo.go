package main

import (
	"github.com/spf13/cobra"

	"github.com/racelens/organizer/internal/config"
	"github.com/racelens/organizer/internal/executor"
	"github.com/racelens/organizer/internal/logging"
)

var (
	undoOutput     string
	undoCopyOrMove string
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Reverse the last organize run under -o DIR",
	Args:  cobra.NoArgs,
	RunE:  runUndo,
}

func init() {
	undoCmd.Flags().StringVarP(&undoOutput, "output", "o", "", "output directory the run wrote to")
	undoCmd.Flags().StringVar(&undoCopyOrMove, "copy-or-move", "copy", "mode the original run used")
	_ = undoCmd.MarkFlagRequired("output")
}

func runUndo(cmd *cobra.Command, args []string) error {
	mode := executor.ModeCopy
	if config.CopyOrMove(undoCopyOrMove) == config.MoveMode {
		mode = executor.ModeMove
	}

	if err := executor.Undo(undoOutput, mode); err != nil {
		return err
	}
	logging.Infof("undo: restored original layout under %s", undoOutput)
	return nil
}
