package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PlexQuant/pkg/ident"
	"github.com/ChrisMcGann/PlexQuant/pkg/reader/psm"
)

var summarizePrefix string

func init() {
	summarizeCmd.Flags().StringVar(&summarizePrefix, "decoy-prefix", "XXX_", "Accession prefix of decoy proteins")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a PSM table",
	Long:  `Print PSM, peptide and accession counts of a PSM table, overall and for targets only.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open PSM file: %w", err)
		}
		defer f.Close()

		psms, err := psm.ReadAll(f, psm.Options{DecoyPrefix: summarizePrefix})
		if err != nil {
			return fmt.Errorf("error reading PSM file: %w", err)
		}
		store, err := ident.NewStore(psms)
		if err != nil {
			return err
		}

		all := store.Show()
		all.Stage = "all"
		fmt.Println(all)
		fmt.Println(store.ApplyFilter("targets", ident.NonDecoy))
		fmt.Printf("Decoy PSMs: %d\n", all.PSMs-store.Show().PSMs)
		return nil
	},
}
