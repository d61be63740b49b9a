package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avatarstudio/avatargw/internal/daemon"
	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/job"
)

// signalContext is canceled on Ctrl-C so long polls stop cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// printJSON pretty-prints an encoded document, falling back to the raw bytes.
func printJSON(w io.Writer, raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintln(w, string(raw))
		return
	}
	fmt.Fprintln(w, buf.String())
}

// printSubmission reports a submission and, with wait set, polls it to the end.
func printSubmission(ctx context.Context, d *daemon.Daemon, key string, sub domain.Submission, wait bool) error {
	if sub.Resolved() {
		printJSON(os.Stdout, sub.Result)
		return nil
	}
	h := *sub.Handle
	if !wait {
		fmt.Printf("Submitted %s task %s\n", h.Vendor, h.TaskID)
		fmt.Printf("Check it with: avatargw poll %s %s --wait\n", h.Vendor, h.TaskID)
		return nil
	}
	return waitFor(ctx, d, key, h)
}

// waitFor polls h with the configured policy behind a wait indicator.
func waitFor(ctx context.Context, d *daemon.Daemon, key string, h domain.TaskHandle) error {
	policy := d.Jobs.Policy()
	ind := newWaitIndicator(os.Stderr, h, policy.MaxElapsed)
	ind.Start(time.Second)

	res, err := d.Jobs.PollUntilDone(ctx, h, key, job.PollPolicy{})
	status := res.Status
	if status == "" {
		status = domain.StatusFailed
	}
	ind.Stop(status)
	if err != nil {
		return err
	}
	printJSON(os.Stdout, res.Payload)
	return nil
}
