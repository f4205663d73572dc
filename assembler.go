package papergen

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Assembler is the top-level driver: allocate once, fill every cell through
// the orchestrator with bounded parallelism, and fold the results into a
// Paper with a fulfillment report.
type Assembler struct {
	orch *Orchestrator
	cfg  GenerationConfig
	log  *zap.SugaredLogger
}

// NewAssembler creates an assembler driving the given orchestrator. A
// non-positive concurrency is treated as 1; errgroup.SetLimit(0) would never
// admit a worker.
func NewAssembler(orch *Orchestrator, cfg GenerationConfig, logger *zap.SugaredLogger) *Assembler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Assembler{orch: orch, cfg: cfg, log: logger}
}

type cellResult struct {
	questions []*Question
	report    CellReport
}

// Assemble builds a complete paper from the config. Cells run concurrently up
// to the configured limit; the shared ledger is the only cross-cell state.
// A short paper is returned flagged incomplete, never padded and never an
// error. The only error return is a ledger persistence failure; cancellation
// just truncates the paper.
func (a *Assembler) Assemble(ctx context.Context, config PaperConfig) (*Paper, error) {
	cells, allocErrs := Allocate(config)
	for _, e := range allocErrs {
		a.log.Warnw("section failed allocation", "section", e.Section, "reason", e.Reason)
	}
	a.log.Infow("allocation complete",
		"paper", config.Name, "cells", len(cells), "failed_sections", len(allocErrs))

	results := make([]cellResult, len(cells))

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.Concurrency)
	for i, cell := range cells {
		g.Go(func() error {
			qs, report, err := a.orch.Fill(ctx, cell, a.cfg.BudgetFor(cell))
			results[i] = cellResult{questions: qs, report: report}
			// Only ledger failures propagate; they poison dedup tracking for
			// the whole run.
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paperID := config.ID
	if paperID == "" {
		paperID = uuid.NewString()
	}
	paper := &Paper{
		ID:             paperID,
		Name:           config.Name,
		Subject:        config.Subject,
		Config:         config,
		AllocationErrs: allocErrs,
		CreatedAt:      time.Now(),
	}

	// Cells come out of the allocator in section, topic, tier order and
	// results are slotted by cell index, so appending in order gives the
	// deterministic paper ordering regardless of which worker finished first.
	for _, res := range results {
		paper.TotalRequested += res.report.Cell.Target
		for _, q := range res.questions {
			paper.Questions = append(paper.Questions, *q)
		}
		paper.TotalAccepted += res.report.Record.Accepted
		if res.report.State != CellFilled {
			paper.Fulfillment = append(paper.Fulfillment, res.report)
		}
	}
	paper.Incomplete = paper.TotalAccepted < paper.TotalRequested || len(allocErrs) > 0

	a.log.Infow("paper assembled",
		"paper_id", paper.ID,
		"accepted", paper.TotalAccepted,
		"requested", paper.TotalRequested,
		"underfilled_cells", len(paper.Fulfillment),
		"incomplete", paper.Incomplete)

	return paper, nil
}
