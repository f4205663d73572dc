package papergen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Orchestrator fills one cell at a time: it repeatedly invokes the external
// generation capability, feeds every candidate through the validator and the
// ledger, and stops when the cell's quota is met or its retry budget runs
// out.
//
// Attempt accounting: one unit per failed generation call (transport error or
// undecodable output) and one unit per candidate processed, whether the
// candidate is accepted, rejected, or a duplicate.
type Orchestrator struct {
	subject   string
	text      TextGenerator
	vision    VisionGenerator
	validator *Validator
	ledger    Ledger
	cfg       GenerationConfig
	log       *zap.SugaredLogger
	runlog    *RunLogger
}

// NewOrchestrator wires an orchestrator for one paper's subject. vision may
// be nil when no topic carries visual context; logger nil means no process
// logging, runlog nil means no audit transcript.
func NewOrchestrator(subject string, text TextGenerator, vision VisionGenerator,
	ledger Ledger, cfg GenerationConfig, logger *zap.SugaredLogger, runlog *RunLogger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		subject:   subject,
		text:      text,
		vision:    vision,
		validator: NewValidator(cfg),
		ledger:    ledger,
		cfg:       cfg,
		log:       logger,
		runlog:    runlog,
	}
}

// Fill generates questions for the cell until its target is met or the budget
// is exhausted. Generation, decoding, validation, and duplicate failures are
// all absorbed into the report; the only returned error is a ledger failure,
// which must abort the whole run.
func (o *Orchestrator) Fill(ctx context.Context, cell Cell, budget RetryBudget) ([]*Question, CellReport, error) {
	report := CellReport{Cell: cell}
	rec := &report.Record

	// Vision mode holds only while the topic has context and the vision path
	// keeps working; the first vision failure flips the cell to text
	// generation for good.
	visionMode := cell.Topic.Visual != nil && len(cell.Topic.Visual.Images) > 0 && o.vision != nil

	var accepted []*Question

	for len(accepted) < cell.Target && rec.Attempts < budget.MaxAttempts {
		if ctx.Err() != nil {
			rec.LastFailure = "cancelled"
			break
		}

		remaining := cell.Target - len(accepted)
		batch := remaining
		if batch > o.cfg.BatchSize {
			batch = o.cfg.BatchSize
		}

		raw, mode, err := o.generate(ctx, cell, batch, visionMode)
		if err != nil {
			rec.Attempts++
			rec.LastFailure = fmt.Sprintf("generation failed: %v", err)
			o.log.Warnw("generation call failed", "cell", cell.String(), "mode", mode, "error", err)
			if visionMode {
				visionMode = false
				report.FellBack = true
				o.log.Infow("falling back to text generation", "cell", cell.String())
			}
			continue
		}
		o.runlog.LogResponse(cell, raw)

		candidates, err := DecodeCandidates(raw)
		if err != nil {
			rec.Attempts++
			rec.Malformed++
			rec.LastFailure = fmt.Sprintf("malformed output: %v", err)
			o.log.Warnw("malformed generation output", "cell", cell.String(), "mode", mode, "error", err)
			if visionMode {
				visionMode = false
				report.FellBack = true
				o.log.Infow("falling back to text generation", "cell", cell.String())
			}
			continue
		}

		for _, cand := range candidates {
			if len(accepted) >= cell.Target || rec.Attempts >= budget.MaxAttempts {
				break
			}
			rec.Attempts++

			q := cand.ToQuestion(cell)
			fp := FingerprintOf(q)

			seen, err := o.ledger.Seen(ctx, fp)
			if err != nil {
				// A ctx-respecting ledger surfaces cancellation as an error
				// here; that is the run winding down, not a persistence fault.
				if ctx.Err() != nil {
					rec.LastFailure = "cancelled"
					break
				}
				return accepted, report, fmt.Errorf("ledger lookup failed: %w", err)
			}
			if seen {
				rec.Duplicates++
				rec.LastFailure = "duplicate question"
				o.runlog.LogCandidate(q.ID, "DUPLICATE", string(fp[:12]))
				continue
			}

			if problems := o.validator.Validate(q, cell.Topic.Visual != nil); len(problems) > 0 {
				rec.Rejected++
				rec.LastFailure = "validation: " + strings.Join(problems, "; ")
				o.runlog.LogCandidate(q.ID, "REJECTED", strings.Join(problems, "; "))
				continue
			}

			// The insert is the atomic check-then-act: a racing cell that got
			// here first wins and this candidate becomes a duplicate.
			recorded, err := o.ledger.Record(ctx, fp, q.ID)
			if err != nil {
				if ctx.Err() != nil {
					rec.LastFailure = "cancelled"
					break
				}
				return accepted, report, fmt.Errorf("ledger record failed: %w", err)
			}
			if !recorded {
				rec.Duplicates++
				rec.LastFailure = "duplicate question"
				o.runlog.LogCandidate(q.ID, "DUPLICATE", string(fp[:12]))
				continue
			}

			accepted = append(accepted, q)
			rec.Accepted++
			o.runlog.LogCandidate(q.ID, "ACCEPTED", "")
		}
	}

	switch {
	case len(accepted) >= cell.Target:
		report.State = CellFilled
	case len(accepted) > 0:
		report.State = CellPartial
	default:
		report.State = CellExhausted
	}
	o.runlog.LogCellDone(report)
	o.log.Infow("cell finished",
		"cell", cell.String(), "state", string(report.State),
		"accepted", rec.Accepted, "attempts", rec.Attempts)

	return accepted, report, nil
}

// generate performs one external generation call in the current mode.
func (o *Orchestrator) generate(ctx context.Context, cell Cell, n int, visionMode bool) (string, string, error) {
	if visionMode {
		prompt := buildVisionPrompt(o.subject, cell, n, o.cfg)
		o.runlog.LogRequest(cell, "vision", prompt)
		raw, err := o.vision.Generate(ctx, prompt, cell.Topic.Visual.Images)
		return raw, "vision", err
	}
	prompt := buildGenerationPrompt(o.subject, cell, n, o.cfg)
	o.runlog.LogRequest(cell, "text", prompt)
	raw, err := o.text.Generate(ctx, prompt)
	return raw, "text", err
}
