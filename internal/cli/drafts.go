package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/avatarstudio/avatargw/internal/daemon"
	"github.com/avatarstudio/avatargw/internal/infra/sqlite"
)

func init() {
	draftsCmd.AddCommand(draftsGetCmd, draftsPutCmd, draftsRmCmd)
	rootCmd.AddCommand(draftsCmd)
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Inspect saved form drafts",
}

var draftsGetCmd = &cobra.Command{
	Use:   "get KIND KEY",
	Short: "Print a draft",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *sqlite.DB) error {
			v, err := db.GetDraft(args[0], args[1])
			if err != nil {
				return err
			}
			printJSON(os.Stdout, v)
			return nil
		})
	},
}

var draftsPutCmd = &cobra.Command{
	Use:   "put KIND KEY [JSON]",
	Short: "Save a draft (JSON from the argument or stdin)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value []byte
		if len(args) == 3 {
			value = []byte(args[2])
		} else {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			value = b
		}
		if !json.Valid(value) {
			return fmt.Errorf("draft value must be a JSON document")
		}
		return withStore(func(db *sqlite.DB) error {
			return db.PutDraft(args[0], args[1], value)
		})
	},
}

var draftsRmCmd = &cobra.Command{
	Use:   "rm KIND KEY",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(db *sqlite.DB) error {
			if err := db.DeleteDraft(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Removed %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

func withStore(fn func(db *sqlite.DB) error) error {
	db, err := sqlite.Open(daemon.Home())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
