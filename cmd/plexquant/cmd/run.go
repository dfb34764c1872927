package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/crosstab"
	"github.com/ChrisMcGann/PlexQuant/pkg/fdr"
	"github.com/ChrisMcGann/PlexQuant/pkg/pipeline"
	"github.com/ChrisMcGann/PlexQuant/pkg/reader/fasta"
	"github.com/ChrisMcGann/PlexQuant/pkg/reader/masic"
	"github.com/ChrisMcGann/PlexQuant/pkg/reader/psm"
	"github.com/ChrisMcGann/PlexQuant/pkg/writer/sqlite"
	"github.com/ChrisMcGann/PlexQuant/pkg/writer/tsv"
)

var (
	// Flags for run command
	psmFile         string
	reporterFiles   []string
	fastaFile       string
	designFiles     designFlags
	outputFile      string
	tsvFile         string
	fdrTarget       float64
	fdrLevel        string
	scoreColumns    []string
	decoyRatio      float64
	minDecoys       int
	decoyPrefix     string
	uniqueOnly      bool
	expand          bool
	maxIterations   int
	mapSites        bool
	siteMarkers     string
	minAScore       float64
	minInterference float64
	minSignalNoise  float64
	aggregateKey    string
	statistic       string
)

// MASIC names its reporter ion tables <dataset>_ReporterIons.txt
const reporterSuffix = "_ReporterIons.txt"

func init() {
	defaults := pipeline.DefaultConfig()

	f := runCmd.Flags()
	f.StringVarP(&psmFile, "psm", "i", "", "PSM table, MS-GF+ synopsis layout (required)")
	f.StringSliceVarP(&reporterFiles, "reporter", "r", nil, "MASIC reporter ion tables, one per dataset (required)")
	f.StringVar(&fastaFile, "fasta", "", "Protein FASTA, plain or gzip (required)")
	designFiles.register(runCmd)
	f.StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	f.StringVar(&tsvFile, "tsv", "", "Also write the crosstab as a tab separated table")

	f.Float64Var(&fdrTarget, "fdr", defaults.FDR.Target, "Target false discovery rate")
	f.StringVar(&fdrLevel, "fdr-level", string(defaults.FDRLevel), "FDR level: none, peptide, protein or both")
	f.StringSliceVar(&scoreColumns, "score", []string{"MSGFDB_SpecEValue:lower", "MassErrorPPM:lower:abs"},
		"Score columns as name:lower|higher[:abs]")
	f.Float64Var(&decoyRatio, "decoy-ratio", defaults.FDR.DecoyRatio, "Decoy to target database size ratio; the FDR estimate is divided by it")
	f.IntVar(&minDecoys, "min-decoys", fdr.DefaultMinDecoys, "Minimum decoys needed to estimate the FDR")
	f.StringVar(&decoyPrefix, "decoy-prefix", fdr.DefaultDecoyPrefix, "Accession prefix of decoy proteins")

	f.BoolVar(&uniqueOnly, "unique-only", false, "Drop shared peptides instead of assigning them")
	f.BoolVar(&expand, "expand", false, "Add every FASTA protein containing a peptide to its candidates")
	f.IntVar(&maxIterations, "max-iterations", defaults.MaxIterations, "Inference iteration cap")

	f.BoolVar(&mapSites, "sites", defaults.MapSites, "Map modification sites onto proteins")
	f.StringVar(&siteMarkers, "site-markers", defaults.SiteMarkers, "Markers that define sites (empty = all)")
	f.Float64Var(&minAScore, "min-ascore", 0, "Minimum AScore (0 = no filter)")

	f.Float64Var(&minInterference, "min-interference", 0, "Minimum reporter interference score (0 = no filter)")
	f.Float64Var(&minSignalNoise, "min-sn", 0, "Minimum reporter signal to noise (0 = no filter)")

	f.StringVar(&aggregateKey, "key", "accession", "Aggregation key: comma separated accession, peptide, site, dataset")
	f.StringVar(&statistic, "stat", string(defaults.Statistic), "Summary statistic: sum, median or mean-log")

	runCmd.MarkFlagRequired("psm")
	runCmd.MarkFlagRequired("reporter")
	runCmd.MarkFlagRequired("fasta")
	runCmd.MarkFlagRequired("out")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full quantification pipeline",
	Long: `Filter identifications, infer proteins, map sites and aggregate
reference-normalized reporter intensities into a crosstab.

Examples:
  # Protein level crosstab
  plexquant run -i msgf_syn.txt -r ds1_ReporterIons.txt,ds2_ReporterIons.txt \
    --fasta uniprot.fasta.gz --fractions fractions.txt --samples samples.txt \
    --references references.txt -o results.db

  # Phosphosite crosstab with reporter QC and a TSV copy
  plexquant run ... --key site --fdr-level both --min-interference 0.9 --tsv sites.txt`,
	RunE: runPipeline,
}

// parseColumns parses name:lower|higher[:abs] score specifications
func parseColumns(specs []string) ([]fdr.Column, error) {
	var cols []fdr.Column
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid score column %q, expected name:lower|higher[:abs]", spec)
		}
		col := fdr.Column{Name: parts[0]}
		switch strings.ToLower(parts[1]) {
		case "lower":
			col.Direction = fdr.LowerIsBetter
		case "higher":
			col.Direction = fdr.HigherIsBetter
		default:
			return nil, fmt.Errorf("invalid direction %q in score column %q", parts[1], spec)
		}
		if len(parts) == 3 {
			if parts[2] != "abs" {
				return nil, fmt.Errorf("invalid modifier %q in score column %q", parts[2], spec)
			}
			col.Absolute = true
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func buildConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	cols, err := parseColumns(scoreColumns)
	if err != nil {
		return cfg, err
	}
	level, err := pipeline.ParseFDRLevel(fdrLevel)
	if err != nil {
		return cfg, err
	}
	key, err := crosstab.ParseKey(aggregateKey)
	if err != nil {
		return cfg, err
	}
	stat, err := crosstab.ParseStatistic(statistic)
	if err != nil {
		return cfg, err
	}

	cfg.FDR.Target = fdrTarget
	cfg.FDR.Columns = cols
	cfg.FDR.DecoyRatio = decoyRatio
	cfg.FDR.MinDecoys = minDecoys
	cfg.FDR.DecoyPrefix = decoyPrefix
	cfg.FDRLevel = level
	cfg.UniqueOnly = uniqueOnly
	cfg.ExpandFromReferences = expand
	cfg.MaxIterations = maxIterations
	cfg.MapSites = mapSites
	cfg.SiteMarkers = siteMarkers
	cfg.MinAScore = minAScore
	cfg.QC.MinInterference = minInterference
	cfg.QC.MinSignalToNoise = minSignalNoise
	cfg.Key = key
	cfg.Statistic = stat
	return cfg, cfg.Validate()
}

func readReporters(paths []string) ([]core.ReporterIntensity, error) {
	var all []core.ReporterIntensity
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open reporter table: %w", err)
		}
		dataset := strings.TrimSuffix(filepath.Base(path), reporterSuffix)
		rows, err := masic.ReadAll(f, masic.Options{DatasetID: dataset})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	mods, err := loadMods()
	if err != nil {
		return err
	}

	fmt.Printf("Loading study design...\n")
	model, err := designFiles.load()
	if err != nil {
		return err
	}

	fmt.Printf("Reading %s...\n", psmFile)
	in, err := os.Open(psmFile)
	if err != nil {
		return fmt.Errorf("failed to open PSM file: %w", err)
	}
	psms, err := psm.ReadAll(in, psm.Options{DecoyPrefix: decoyPrefix})
	in.Close()
	if err != nil {
		return fmt.Errorf("error reading PSM file: %w", err)
	}
	fmt.Printf("Loaded %d PSMs\n", len(psms))

	refs, err := fasta.ReadFile(fastaFile)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d protein sequences\n", len(refs))

	reporters, err := readReporters(reporterFiles)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d reporter ion intensities\n", len(reporters))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := pipeline.Run(ctx, pipeline.Inputs{
		PSMs:       psms,
		References: refs,
		Reporter:   reporters,
		Design:     model,
		Mods:       mods,
	}, cfg, newLogger())
	if err != nil {
		return err
	}

	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	if err := writer.WriteStore(res.Store); err != nil {
		writer.Close()
		return err
	}
	if err := writer.WriteMatrix(res.Matrix); err != nil {
		writer.Close()
		return err
	}
	if err := writer.WriteStages(res.Stages); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Finalize(describe(cfg, res)); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	if tsvFile != "" {
		if err := tsv.WriteMatrixFile(tsvFile, res.Matrix); err != nil {
			return err
		}
	}

	fmt.Printf("\nQuantification complete!\n")
	for _, s := range res.Stages {
		fmt.Printf("  %s\n", s)
	}
	fmt.Printf("Crosstab: %d features x %d measurements, %d values\n",
		res.Diagnostics.Rows, res.Diagnostics.Columns, res.Diagnostics.PopulatedCells)
	fmt.Printf("Output: %s\n", outputFile)
	if tsvFile != "" {
		fmt.Printf("TSV: %s\n", tsvFile)
	}
	return nil
}

// describe summarizes the configuration for HeaderTable
func describe(cfg pipeline.Config, res *pipeline.Result) string {
	parts := []string{
		fmt.Sprintf("fdr=%g level=%s", cfg.FDR.Target, cfg.FDRLevel),
		fmt.Sprintf("key=%s stat=%s", cfg.Key, cfg.Statistic),
	}
	for _, r := range []*fdr.Result{res.PeptideFDR, res.ProteinFDR} {
		if r != nil && r.Feasible {
			parts = append(parts, r.String())
		}
	}
	if res.Inference != nil {
		parts = append(parts, fmt.Sprintf("inference converged=%t iterations=%d", res.Inference.Converged, res.Inference.Iterations))
	}
	return strings.Join(parts, "; ")
}
