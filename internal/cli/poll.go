package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avatarstudio/avatargw/internal/daemon"
	"github.com/avatarstudio/avatargw/internal/domain"
)

var pollWait bool

func init() {
	pollCmd.Flags().BoolVar(&pollWait, "wait", false, "Keep polling until the task finishes or the budget runs out")
	rootCmd.AddCommand(pollCmd)
}

var pollCmd = &cobra.Command{
	Use:   "poll VENDOR TASK_ID",
	Short: "Check the status of a submitted task",
	Args:  cobra.ExactArgs(2),
	RunE:  runPoll,
}

func runPoll(cmd *cobra.Command, args []string) error {
	v, err := domain.ParseVendor(args[0])
	if err != nil {
		return err
	}
	h := domain.TaskHandle{Vendor: v, TaskID: args[1]}

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

	if pollWait {
		return waitFor(ctx, d, key, h)
	}

	res, err := d.Jobs.Poll(ctx, h, key)
	if err != nil && res.Status != domain.StatusFailed {
		return err
	}
	fmt.Printf("Status: %s\n", res.Status)
	if res.Error != nil {
		fmt.Printf("Error:  %s\n", res.Error.Message)
	}
	if len(res.Payload) > 0 {
		printJSON(os.Stdout, res.Payload)
	}
	return nil
}
