package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"spitbox/cache"
	"spitbox/core/audiodec"
	"spitbox/core/overlay"
	"spitbox/core/playback"
	"spitbox/core/waveform"
	"spitbox/logger"
	"spitbox/model"
)

const progressWidth = 60

var playCmd = &cobra.Command{
	Use:   "play <beat-id>",
	Short: "Play a beat with its waveform and comment markers.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		beatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad beat id %q", args[0])
		}

		api, _, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		beat, err := findBeat(ctx, api, beatID)
		if err != nil {
			return err
		}

		rdb, err := cache.ConnectRedis(cfg)
		if err != nil {
			logger.Warn("redis unavailable, using in-process peaks cache", logger.ErrorField(err))
		}
		waveCache := cache.NewWaveCache(rdb, cfg.PeaksCacheTTL)

		renderer := waveform.NewRenderer(
			audiodec.NewFFmpegDecoder(cfg.FFmpegPath),
			playback.NewFFplaySink(cfg.FFmpegPath),
			waveCache,
			cfg.PeakBuckets,
		)
		defer renderer.Close()

		if err := renderer.Load(ctx, resolveAudioURL(beat.AudioURL)); err != nil {
			return fmt.Errorf("failed to load beat audio: %w", err)
		}

		comments, err := api.Comments(ctx, beatID)
		if err != nil {
			logger.Warn("failed to load comments", logger.Int64("beatId", beatID), logger.ErrorField(err))
		}
		markers := overlay.BuildMarkers(comments, renderer.Duration())

		fmt.Printf("Playing #%d %q by %s (%.1fs, %d comments)\n",
			beat.ID, beat.Title, beat.Author, renderer.Duration(), len(comments))

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigs
			renderer.Close()
		}()

		if err := renderer.Play(ctx); err != nil {
			return err
		}

		duration := renderer.Duration()
		for pos := range renderer.Positions() {
			drawProgress(pos, duration, markers)
			if pos >= duration {
				break
			}
		}
		fmt.Println()
		return nil
	},
}

// findBeat walks feed pages until the beat shows up.
func findBeat(ctx context.Context, api feedAPI, beatID int64) (*model.Beat, error) {
	for page := 1; ; page++ {
		feedPage, err := api.Beats(ctx, page, 25)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch feed: %w", err)
		}
		for i := range feedPage.Beats {
			if feedPage.Beats[i].ID == beatID {
				return &feedPage.Beats[i], nil
			}
		}
		if len(feedPage.Beats) == 0 || page >= feedPage.Pages {
			return nil, fmt.Errorf("beat %d not found in feed", beatID)
		}
	}
}

type feedAPI interface {
	Beats(ctx context.Context, page, perPage int) (*model.FeedPage, error)
}

// resolveAudioURL makes a backend-relative audio path absolute against the
// configured API base.
func resolveAudioURL(audioURL string) string {
	if strings.HasPrefix(audioURL, "http://") || strings.HasPrefix(audioURL, "https://") {
		return audioURL
	}
	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return audioURL
	}
	base.Path = ""
	return base.String() + "/" + strings.TrimLeft(audioURL, "/")
}

// drawProgress redraws the one-line transport bar. Markers show as ticks
// and the marker nearest the playhead gets its text printed after the bar.
func drawProgress(pos, duration float64, markers []overlay.Marker) {
	bar := make([]byte, progressWidth)
	for i := range bar {
		bar[i] = '-'
	}
	for _, m := range markers {
		idx := int(m.Percent / 100 * float64(progressWidth-1))
		bar[idx] = '+'
	}
	if duration > 0 {
		head := int(pos / duration * float64(progressWidth-1))
		if head >= progressWidth {
			head = progressWidth - 1
		}
		bar[head] = '|'
	}

	line := fmt.Sprintf("\r[%s] %5.1f/%.1fs", bar, pos, duration)
	visible := overlay.VisibleMarkers(markers, pos)
	for _, m := range markers {
		if _, ok := visible[m.CommentID]; ok {
			line += fmt.Sprintf("  %s: %s", m.Author, m.Text)
			break
		}
	}
	// Pad so a shorter redraw fully covers the previous line.
	fmt.Printf("%-120s", line)
}

func init() {
	rootCmd.AddCommand(playCmd)
}
