package main

import (
	"os"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/logging"
)

func main() {
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		logging.Errorf("racelens: %v", err)
		os.Exit(apperr.ExitCode(err))
	}
}
