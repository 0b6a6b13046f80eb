package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spitbox/client"
	"spitbox/config"
	"spitbox/core/auth"
	"spitbox/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "spitbox",
	Short: "Spit.box is a social audio sharing client.",
	Long: `Spit.box records takes from the microphone, publishes them as beats,
and plays back the feed with waveform-synchronized comments.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient builds the API client with the persisted session, if any.
func newClient() (*client.Client, *auth.TokenStore, error) {
	tokens, err := auth.NewTokenStore(cfg.TokenPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open token store: %w", err)
	}
	if tokens.Token() != "" && tokens.Expired() {
		fmt.Fprintln(os.Stderr, "Stored session has expired, run `spitbox login` again.")
	}
	return client.New(cfg.APIBaseURL, tokens), tokens, nil
}
