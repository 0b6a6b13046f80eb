package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"spitbox/core/audiodec"
	"spitbox/core/capture"
	"spitbox/core/playback"
)

var (
	recordTitle       string
	recordDescription string
	recordInputFormat string
	recordInputName   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a take from the microphone and publish it.",
	Long: `Opens the capture device and drives the take through its lifecycle:

  start    begin recording
  stop     finish the take
  preview  play the stopped take (again to stop)
  submit   publish the take as a beat
  reset    discard everything and start over
  quit     exit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := newClient()
		if err != nil {
			return err
		}

		device := capture.NewFFmpegDevice(cfg.FFmpegPath, recordInputFormat, recordInputName)
		decoder := audiodec.NewFFmpegDecoder(cfg.FFmpegPath)
		sink := playback.NewFFplaySink(cfg.FFmpegPath)
		constraints := capture.DefaultConstraints(cfg.SampleRate, cfg.ChunkInterval)
		recorder := capture.NewRecorder(device, decoder, sink, api, constraints, cfg.MaxRecordSecs)
		defer recorder.Reset()

		ctx := context.Background()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Ready. Type `start` to begin recording, `quit` to exit.")
		for {
			fmt.Printf("[%s] > ", recorder.State())
			if !scanner.Scan() {
				return scanner.Err()
			}

			switch strings.TrimSpace(scanner.Text()) {
			case "start":
				if err := recorder.Start(ctx); err != nil {
					fmt.Println("cannot start:", err)
					continue
				}
				fmt.Println("Recording... type `stop` to finish.")
			case "stop":
				if err := recorder.Stop(); err != nil {
					fmt.Println("cannot stop:", err)
					continue
				}
				fmt.Printf("Stopped after %ds, take is %d bytes.\n", recorder.Elapsed(), len(recorder.Take()))
			case "preview":
				if err := recorder.TogglePreview(ctx); err != nil {
					fmt.Println("preview failed:", err)
				}
			case "submit":
				title := recordTitle
				if title == "" {
					title = prompt("Title: ")
				}
				beat, err := recorder.Submit(ctx, title, recordDescription)
				if err != nil {
					fmt.Println("submit failed, take kept:", err)
					continue
				}
				fmt.Printf("Published beat #%d %q.\n", beat.ID, beat.Title)
				return nil
			case "reset":
				recorder.Reset()
				fmt.Println("Take discarded.")
			case "quit", "exit":
				return nil
			case "":
			default:
				fmt.Println("Commands: start, stop, preview, submit, reset, quit.")
			}
		}
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordTitle, "title", "", "beat title (prompted on submit when empty)")
	recordCmd.Flags().StringVar(&recordDescription, "description", "", "beat description")
	recordCmd.Flags().StringVar(&recordInputFormat, "input-format", "", "ffmpeg input format (default pulse)")
	recordCmd.Flags().StringVar(&recordInputName, "input", "", "capture device name (default default)")

	rootCmd.AddCommand(recordCmd)
}
