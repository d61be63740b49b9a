package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/avatarstudio/avatargw/internal/daemon"
	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/job"
)

var (
	submitWait   bool
	submitImage  string
	submitAudio  string
	submitVideo  string
	submitPrompt string
	submitRes    string
	submitAspect string
)

func init() {
	submitCmd.PersistentFlags().BoolVar(&submitWait, "wait", false, "Poll the task until it finishes")
	submitCmd.PersistentFlags().StringVar(&submitAudio, "audio", "", "Audio URL")

	lipsyncCmd.Flags().StringVar(&submitVideo, "video", "", "Video URL")

	talkingHeadCmd.Flags().StringVar(&submitImage, "image", "", "Portrait image URL")

	hedraCmd.Flags().StringVar(&submitImage, "image", "", "Character image URL")
	hedraCmd.Flags().StringVar(&submitPrompt, "prompt", "", "Optional text prompt")
	hedraCmd.Flags().StringVar(&submitRes, "resolution", "", "540p or 720p")
	hedraCmd.Flags().StringVar(&submitAspect, "aspect-ratio", "", "1:1, 16:9 or 9:16")

	submitCmd.AddCommand(lipsyncCmd, talkingHeadCmd, hedraCmd)
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a generation job to the upstream gateway",
}

var lipsyncCmd = &cobra.Command{
	Use:   "lipsync --video URL --audio URL",
	Short: "Re-time a video's mouth to an audio track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(func(ctx context.Context, d *daemon.Daemon, key string) (domain.Submission, error) {
			return d.Jobs.SubmitLipSync(ctx, job.LipSyncRequest{
				APIKey: key, VideoURL: submitVideo, AudioURL: submitAudio,
			})
		})
	},
}

var talkingHeadCmd = &cobra.Command{
	Use:   "talking-head --image URL --audio URL",
	Short: "Animate a portrait from audio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(func(ctx context.Context, d *daemon.Daemon, key string) (domain.Submission, error) {
			return d.Jobs.SubmitTalkingHead(ctx, job.TalkingHeadRequest{
				APIKey: key, ImageURL: submitImage, AudioURL: submitAudio,
			})
		})
	},
}

var hedraCmd = &cobra.Command{
	Use:   "hedra --image URL --audio URL",
	Short: "Generate a character video",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(func(ctx context.Context, d *daemon.Daemon, key string) (domain.Submission, error) {
			return d.Jobs.SubmitHedra(ctx, job.HedraRequest{
				APIKey: key, ImageURL: submitImage, AudioURL: submitAudio,
				Prompt: submitPrompt, Resolution: submitRes, AspectRatio: submitAspect,
			})
		})
	},
}

// runSubmit opens the daemon services, submits, and reports the result.
func runSubmit(op func(ctx context.Context, d *daemon.Daemon, key string) (domain.Submission, error)) error {
	key, err := apiKey()
	if err != nil {
		return err
	}
	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sub, err := op(ctx, d, key)
	if err != nil {
		return err
	}
	return printSubmission(ctx, d, key, sub, submitWait)
}
