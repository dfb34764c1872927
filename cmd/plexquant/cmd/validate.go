package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PlexQuant/pkg/design"
	designreader "github.com/ChrisMcGann/PlexQuant/pkg/reader/design"
)

// designFlags holds the paths of the three design tables
type designFlags struct {
	files designreader.Files
}

func (d *designFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.files.Fractions, "fractions", "", "Fractions table: Dataset, PlexID (required)")
	cmd.Flags().StringVar(&d.files.Samples, "samples", "", "Samples table: PlexID, QuantBlock, ReporterName, ReporterAlias, MeasurementName (required)")
	cmd.Flags().StringVar(&d.files.References, "references", "", "References table: PlexID, QuantBlock, Reference (required)")
	cmd.MarkFlagRequired("fractions")
	cmd.MarkFlagRequired("samples")
	cmd.MarkFlagRequired("references")
}

func (d *designFlags) load() (*design.Model, error) {
	return designreader.Load(d.files)
}

var validateFiles designFlags

func init() {
	validateFiles.register(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate-design",
	Short: "Validate the study design tables",
	Long: `Build the study design from the Fractions, Samples and References tables
and report any inconsistency: unknown plexes, duplicate channels or names,
missing references, or references naming unknown reporter aliases.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := validateFiles.load()
		if err != nil {
			return err
		}

		fmt.Printf("Study design is valid\n")
		fmt.Printf("Datasets: %d\n", len(model.Datasets()))
		fmt.Printf("Measurements: %d\n", len(model.Measurements()))
		for _, g := range model.Groups() {
			ref, _ := model.Reference(g)
			fmt.Printf("  %s reference: %s\n", g, ref)
		}
		return nil
	},
}
