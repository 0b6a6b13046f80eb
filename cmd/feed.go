package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"spitbox/core/feed"
)

var (
	feedPerPage int
	feedPages   int
	feedLikeID  int64
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "List the beat feed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := newClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		ctrl := feed.NewController(api, feedPerPage)
		if err := ctrl.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to load feed: %w", err)
		}
		for page := 1; page < feedPages && ctrl.HasMore(); page++ {
			if err := ctrl.LoadMore(ctx); err != nil {
				return fmt.Errorf("failed to load page %d: %w", page+1, err)
			}
		}

		if feedLikeID != 0 {
			if err := ctrl.ToggleLike(ctx, feedLikeID); err != nil {
				return fmt.Errorf("failed to toggle like on beat %d: %w", feedLikeID, err)
			}
		}

		beats := ctrl.Beats()
		if len(beats) == 0 {
			fmt.Println("The feed is empty.")
			return nil
		}

		for _, b := range beats {
			liked := " "
			if b.LikedByUser {
				liked = "♥"
			}
			fmt.Printf("#%-5d %s %-30q by %-15s %d likes\n", b.ID, liked, b.Title, b.Author, b.LikesCount)
		}
		fmt.Printf("%d of %d beats shown.\n", len(beats), ctrl.Total())
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <beat-id> <offset-seconds> <text>",
	Short: "Attach a comment to a moment in a beat.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		beatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad beat id %q", args[0])
		}
		offset, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad offset %q", args[1])
		}

		api, _, err := newClient()
		if err != nil {
			return err
		}

		comment, err := api.AddComment(context.Background(), beatID, args[2], offset)
		if err != nil {
			return fmt.Errorf("failed to add comment: %w", err)
		}
		fmt.Printf("Comment #%d added at %.1fs.\n", comment.ID, comment.Timestamp)
		return nil
	},
}

func init() {
	feedCmd.Flags().IntVar(&feedPerPage, "per-page", 10, "beats per page")
	feedCmd.Flags().IntVar(&feedPages, "pages", 1, "number of pages to fetch")
	feedCmd.Flags().Int64Var(&feedLikeID, "like", 0, "toggle your like on this beat id")

	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(commentCmd)
}
