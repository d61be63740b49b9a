// Package cli implements the avatargw command-line interface using Cobra.
// Commands either start the HTTP gateway or drive the same job service
// in-process against the upstream.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "avatargw",
	Short: "avatargw - digital avatar video gateway",
	Long: `avatargw submits avatar video, lip-sync and speech jobs to an upstream
AI gateway, polls them to completion, and serves the same workflow over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flagAPIKey string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Upstream API key (default $AVATARGW_API_KEY)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// apiKey returns the credential for upstream calls.
func apiKey() (string, error) {
	if flagAPIKey != "" {
		return flagAPIKey, nil
	}
	if k := os.Getenv("AVATARGW_API_KEY"); k != "" {
		return k, nil
	}
	return "", fmt.Errorf("no API key: pass --api-key or set AVATARGW_API_KEY")
}
