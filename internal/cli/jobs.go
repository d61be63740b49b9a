package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/avatarstudio/avatargw/internal/daemon"
	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/infra/sqlite"
)

var jobsLimit int

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Number of jobs to show")
	rootCmd.AddCommand(jobsCmd)
}

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"ls"},
	Short:   "List recently submitted jobs",
	RunE:    runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	db, err := sqlite.Open(daemon.Home())
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := db.ListJobs(jobsLimit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs yet. Run 'avatargw submit' to start one.")
		return nil
	}
	return writeJobs(os.Stdout, jobs)
}

func writeJobs(out io.Writer, jobs []domain.JobRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VENDOR\tTASK ID\tOPERATION\tSTATUS\tCREATED\tDURATION")
	for _, j := range jobs {
		dur := "-"
		if !j.FinishedAt.IsZero() {
			dur = j.Duration().Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.Vendor,
			j.TaskID,
			j.Operation,
			j.Status,
			j.CreatedAt.Local().Format("2006-01-02 15:04"),
			dur,
		)
	}
	return w.Flush()
}
