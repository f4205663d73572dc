package papergen

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLogger writes a plain-text audit trail of one assembly run: prompts,
// raw model output, and the verdict on every candidate. One file per paper,
// separate from structured process logging, so a bad run can be replayed by
// reading a single transcript.
type RunLogger struct {
	file    *os.File
	mu      sync.Mutex
	paperID string
}

// NewRunLogger creates the audit log file for a paper run under dir.
func NewRunLogger(dir, paperID string, config PaperConfig) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", paperID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	rl := &RunLogger{file: file, paperID: paperID}

	rl.Logf("=== Paper Assembly Log ===\n")
	rl.Logf("Paper ID: %s\n", paperID)
	rl.Logf("Paper: %s\n", config.Name)
	rl.Logf("Subject: %s\n", config.Subject)
	rl.Logf("Sections: %d\n", len(config.Sections))
	rl.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	rl.Logf("==========================\n\n")

	return rl, nil
}

// Logf writes a timestamped entry and flushes it immediately.
func (rl *RunLogger) Logf(format string, args ...interface{}) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(rl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	rl.file.Sync()
}

// LogRequest records a generation request for a cell.
func (rl *RunLogger) LogRequest(cell Cell, mode, prompt string) {
	rl.Logf("=== GENERATION REQUEST (%s, %s) ===\n", cell, mode)
	rl.Logf("Prompt:\n%s\n", prompt)
	rl.Logf("===============================\n\n")
}

// LogResponse records the raw model output for a cell.
func (rl *RunLogger) LogResponse(cell Cell, response string) {
	rl.Logf("=== GENERATION RESPONSE (%s) ===\n", cell)
	rl.Logf("Response:\n%s\n", response)
	rl.Logf("================================\n\n")
}

// LogCandidate records the verdict on a single candidate.
func (rl *RunLogger) LogCandidate(questionID, verdict, detail string) {
	if detail == "" {
		rl.Logf("Candidate %s: %s\n", questionID, verdict)
		return
	}
	rl.Logf("Candidate %s: %s - %s\n", questionID, verdict, detail)
}

// LogCellDone records a cell's terminal state.
func (rl *RunLogger) LogCellDone(report CellReport) {
	line := fmt.Sprintf("Cell %s: %s (%d/%d accepted, %d attempts",
		report.Cell, report.State, report.Record.Accepted, report.Cell.Target, report.Record.Attempts)
	if report.FellBack {
		line += ", fell back to text generation"
	}
	if report.Record.LastFailure != "" {
		line += ", last failure: " + report.Record.LastFailure
	}
	rl.Logf("%s)\n", line)
}

// Close writes the trailer and closes the file.
func (rl *RunLogger) Close() error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file != nil {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(rl.file, "[%s] === Paper Assembly Complete ===\n", timestamp)
		fmt.Fprintf(rl.file, "[%s] Completed: %s\n", timestamp, time.Now().Format(time.RFC3339))
		return rl.file.Close()
	}
	return nil
}
