package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/crosstab"
	"github.com/ChrisMcGann/PlexQuant/pkg/design"
	"github.com/ChrisMcGann/PlexQuant/pkg/fdr"
	"github.com/ChrisMcGann/PlexQuant/pkg/ident"
	"github.com/ChrisMcGann/PlexQuant/pkg/inference"
	"github.com/ChrisMcGann/PlexQuant/pkg/reporter"
	"github.com/ChrisMcGann/PlexQuant/pkg/sites"
)

// Inputs are the already-parsed relations of a run.
type Inputs struct {
	PSMs       []core.PSM
	References map[string]string // accession -> protein sequence
	Reporter   []core.ReporterIntensity
	Design     *design.Model
	Mods       *core.ModDatabase // nil = core.DefaultModDatabase()
}

// Result carries every intermediate product of a run.
type Result struct {
	Store       *ident.Store
	Stages      []ident.Summary
	PeptideFDR  *fdr.Result
	ProteinFDR  *fdr.Result
	Inference   *inference.Result
	Sites       *sites.Report
	Reporter    *reporter.Table // after QC
	Matrix      *crosstab.Matrix
	Diagnostics *crosstab.Diagnostics

	MassErrorSkipped int // PSMs with residues of unknown composition
}

// Run executes the stages in order. The PSM records of in are annotated in place.
func Run(ctx context.Context, in Inputs, cfg Config, log logr.Logger) (*Result, error) {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if in.Design == nil {
		return nil, fmt.Errorf("study design is required")
	}
	mods := in.Mods
	if mods == nil {
		mods = core.DefaultModDatabase()
	}

	store, err := ident.NewStore(in.PSMs)
	if err != nil {
		return nil, fmt.Errorf("failed to build identification store: %w", err)
	}
	res := &Result{Store: store}
	stage := func(s ident.Summary) {
		res.Stages = append(res.Stages, s)
		log.Info("stage", "stage", s.Stage, "psms", s.PSMs, "peptides", s.Peptides, "accessions", s.Accessions)
	}
	input := store.Show()
	input.Stage = "input"
	stage(input)

	annotated := 0
	for i := 0; i < store.Len(); i++ {
		p := store.Record(i)
		ok, err := core.AnnotateMassError(p, mods)
		var rerr *core.UnknownResidueError
		switch {
		case errors.As(err, &rerr):
			res.MassErrorSkipped++
			log.V(1).Info("no mass error for PSM", "psm", p.Name(), "residue", string(rerr.Residue))
		case err != nil:
			return nil, fmt.Errorf("PSM %s: %w", p.Name(), err)
		case ok:
			annotated++
		}
	}
	log.V(1).Info("computed precursor mass errors", "psms", annotated)
	if res.MassErrorSkipped > 0 {
		log.Info("PSMs with unknown residues left without a mass error", "count", res.MassErrorSkipped)
	}

	if cfg.FDRLevel.peptide() {
		r, err := fdr.PeptideLevel(ctx, store.ActiveRows(), cfg.FDR)
		if err != nil {
			return nil, fmt.Errorf("peptide-level FDR: %w", err)
		}
		res.PeptideFDR = r
		logFDR(log, r)
		stage(store.ApplyFilter("peptide-fdr", r.Predicate()))
	}
	if cfg.FDRLevel.protein() {
		lengths := make(map[string]int, len(in.References))
		for acc, seq := range in.References {
			lengths[acc] = len(seq)
		}
		r, err := fdr.ProteinLevel(ctx, store.ActiveRows(), lengths, cfg.FDR)
		if err != nil {
			return nil, fmt.Errorf("protein-level FDR: %w", err)
		}
		res.ProteinFDR = r
		logFDR(log, r)
		if len(r.Skipped) > 0 {
			log.Info("accessions without a reference sequence left out of protein FDR", "count", len(r.Skipped))
		}
		stage(store.ApplyFilter("protein-fdr", r.Predicate()))
	}
	stage(store.ApplyFilter("non-decoy", ident.NonDecoy))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := inference.FromPSMs(store.ActiveRows())
	if cfg.ExpandFromReferences {
		n := g.Expand(in.References)
		log.V(1).Info("expanded candidate accessions from references", "edges", n)
	}
	if res.ProteinFDR != nil {
		// shared peptides may only go to accessions that passed protein FDR
		n := g.Retain(res.ProteinFDR.Passing)
		log.V(1).Info("removed accessions failing protein FDR from inference", "accessions", n)
	}
	inf := inference.Resolve(g, inference.Options{UniqueOnly: cfg.UniqueOnly, MaxIterations: cfg.MaxIterations})
	res.Inference = inf
	if !inf.Converged {
		log.Info("inference did not converge, using first-round assignment", "iterations", inf.Iterations)
	}
	if len(inf.Discarded) > 0 {
		log.V(1).Info("discarded shared peptides", "count", len(inf.Discarded))
	}
	stage(inf.Apply(store))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.MapSites {
		mapper := sites.NewMapper(in.References, mods, cfg.SiteMarkers)
		rep, err := mapper.MapStore(store)
		if err != nil {
			return nil, fmt.Errorf("site mapping: %w", err)
		}
		res.Sites = rep
		for _, w := range rep.Warnings {
			log.V(1).Info("site mapping", "warning", w.Error())
		}
		log.Info("mapped sites", "mapped", rep.Mapped, "unmodified", rep.Unmodified,
			"unresolved", rep.Unresolved, "nomatch", rep.NoMatch, "ambiguous", rep.Ambiguous)
		if cfg.MinAScore > 0 {
			stage(store.ApplyFilter("ascore", ident.MinAScore(cfg.MinAScore)))
		}
	}

	table, err := reporter.NewTable(in.Reporter)
	if err != nil {
		return nil, fmt.Errorf("failed to build reporter table: %w", err)
	}
	res.Reporter = table.Filter(cfg.QC)
	log.Info("reporter QC", "rows", table.Len(), "kept", res.Reporter.Len())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, diag, err := crosstab.Aggregate(store.ActiveRows(), res.Reporter, in.Design,
		crosstab.Options{Key: cfg.Key, Statistic: cfg.Statistic})
	if err != nil {
		return nil, fmt.Errorf("aggregation: %w", err)
	}
	res.Matrix, res.Diagnostics = m, diag
	log.Info("crosstab", "rows", diag.Rows, "columns", diag.Columns, "cells", diag.PopulatedCells,
		"noKey", diag.NoKey, "unknownDataset", diag.UnknownDataset, "noReporter", diag.NoReporter,
		"nullRatios", diag.NullRatios)
	return res, nil
}

func logFDR(log logr.Logger, r *fdr.Result) {
	if !r.Feasible {
		log.Info("no thresholds reach the FDR target", "level", r.Level)
		return
	}
	log.Info("FDR thresholds", "level", r.Level, "thresholds", r.String())
}
