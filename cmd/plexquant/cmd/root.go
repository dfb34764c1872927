// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

var (
	// Global flags
	verbosity int
	modsCSV   string
)

var rootCmd = &cobra.Command{
	Use:   "plexquant",
	Short: "PlexQuant - TMT/iTRAQ quantification tool",
	Long: `PlexQuant turns peptide identifications and reporter ion intensities from
isobaric labeling experiments into a feature by sample matrix of
reference-normalized abundances.

Stages:
- FDR filtering at peptide and protein level
- Parsimonious protein inference
- Modification site mapping
- Reporter ion QC and reference normalization`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "Log verbosity (0 = stage summaries, 1 = warnings and details)")
	rootCmd.PersistentFlags().StringVar(&modsCSV, "mods", "", "CSV of extra modification markers (marker,name,mass)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
}

// newLogger returns a logger writing key/value records to stderr
func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
}

// loadMods returns the default marker database extended with --mods
func loadMods() (*core.ModDatabase, error) {
	db := core.DefaultModDatabase()
	if modsCSV == "" {
		return db, nil
	}
	f, err := os.Open(modsCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to open modification CSV: %w", err)
	}
	defer f.Close()
	if err := db.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", modsCSV, err)
	}
	return db, nil
}
