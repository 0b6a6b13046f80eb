package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spitbox/core/takes"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the takes directory and publish finished WAV files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := newClient()
		if err != nil {
			return err
		}

		watcher, err := takes.NewWatcher(cfg.TakesDir, api, watchSettle)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", cfg.TakesDir, err)
		}
		defer watcher.Close()

		fmt.Printf("Watching %s for new takes. Ctrl-C to stop.\n", cfg.TakesDir)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		<-sigs
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "quiet period before a file counts as finished")

	rootCmd.AddCommand(watchCmd)
}
