package papergen

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the sqlite store for finished papers and the durable dedup ledger.
// The ledger lives on the same handle so a paper and its fingerprints commit
// against one file.
type DB struct {
	db *sql.DB
}

// OpenDB opens (or creates) the database at dbPath.
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// CreateTables creates the schema if it does not exist.
func (d *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			subject TEXT NOT NULL,
			total_requested INTEGER NOT NULL,
			total_accepted INTEGER NOT NULL,
			incomplete INTEGER NOT NULL,
			config TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'generating'
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			paper_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			section TEXT NOT NULL,
			main_topic TEXT NOT NULL,
			subtopic TEXT,
			difficulty TEXT NOT NULL,
			text TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer INTEGER NOT NULL,
			explanation TEXT,
			refs TEXT,
			image_ref TEXT,
			image_desc TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (paper_id) REFERENCES papers(id)
		)`,
		`CREATE TABLE IF NOT EXISTS cell_reports (
			paper_id TEXT NOT NULL,
			section TEXT NOT NULL,
			main_topic TEXT NOT NULL,
			subtopic TEXT,
			difficulty TEXT NOT NULL,
			state TEXT NOT NULL,
			target INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			fell_back INTEGER NOT NULL,
			last_failure TEXT,
			FOREIGN KEY (paper_id) REFERENCES papers(id)
		)`,
		`CREATE TABLE IF NOT EXISTS used_questions (
			fingerprint TEXT PRIMARY KEY,
			question_id TEXT NOT NULL,
			first_seen DATETIME NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// Ledger returns the durable ledger view of this database.
func (d *DB) Ledger() Ledger {
	return &sqliteLedger{db: d.db}
}

// sqliteLedger implements Ledger on the used_questions table. INSERT OR
// IGNORE makes Record the atomic compare-and-insert; two cells racing on the
// same fingerprint get exactly one insert between them.
type sqliteLedger struct {
	db *sql.DB
}

func (l *sqliteLedger) Seen(ctx context.Context, fp Fingerprint) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM used_questions WHERE fingerprint = ?)", string(fp),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return exists, nil
}

func (l *sqliteLedger) Record(ctx context.Context, fp Fingerprint, questionID string) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO used_questions (fingerprint, question_id, first_seen) VALUES (?, ?, ?)",
		string(fp), questionID, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record fingerprint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record fingerprint: %w", err)
	}
	return n > 0, nil
}

// LedgerSize returns the number of recorded fingerprints.
func (d *DB) LedgerSize() (int, error) {
	var n int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM used_questions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return n, nil
}

// PaperSummary is the list-view row for stored papers.
type PaperSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Subject        string    `json:"subject"`
	TotalRequested int       `json:"total_requested"`
	TotalAccepted  int       `json:"total_accepted"`
	Incomplete     bool      `json:"incomplete"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreatePending inserts a paper row in 'generating' status before assembly
// starts, so the HTTP surface can report progress.
func (d *DB) CreatePending(id string, config PaperConfig) error {
	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = d.db.Exec(
		"INSERT INTO papers (id, name, subject, total_requested, total_accepted, incomplete, config, created_at, status) VALUES (?, ?, ?, 0, 0, 0, ?, ?, 'generating')",
		id, config.Name, config.Subject, string(cfgJSON), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to create pending paper: %w", err)
	}
	return nil
}

// MarkFailed flags a pending paper whose run aborted.
func (d *DB) MarkFailed(id string) error {
	if _, err := d.db.Exec("UPDATE papers SET status = 'failed' WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to mark paper failed: %w", err)
	}
	return nil
}

// SavePaper stores a finished paper, its questions, and its fulfillment
// report, replacing any pending row for the same ID.
func (d *DB) SavePaper(paper *Paper) error {
	cfgJSON, err := json.Marshal(paper.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO papers (id, name, subject, total_requested, total_accepted, incomplete, config, created_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'ready')
		 ON CONFLICT(id) DO UPDATE SET
		   total_requested = excluded.total_requested,
		   total_accepted = excluded.total_accepted,
		   incomplete = excluded.incomplete,
		   status = 'ready'`,
		paper.ID, paper.Name, paper.Subject, paper.TotalRequested, paper.TotalAccepted,
		paper.Incomplete, string(cfgJSON), paper.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save paper: %w", err)
	}

	for i, q := range paper.Questions {
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("failed to marshal options: %w", err)
		}
		refsJSON, err := json.Marshal(q.References)
		if err != nil {
			return fmt.Errorf("failed to marshal references: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO questions (id, paper_id, question_num, section, main_topic, subtopic, difficulty, text, options, correct_answer, explanation, refs, image_ref, image_desc, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, paper.ID, i+1, q.Section, q.MainTopic, q.Subtopic, q.Difficulty.String(),
			q.Text, string(optionsJSON), q.CorrectAnswer, q.Explanation, string(refsJSON),
			q.ImageRef, q.ImageDesc, q.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save question %s: %w", q.ID, err)
		}
	}

	for _, rep := range paper.Fulfillment {
		_, err = tx.Exec(
			`INSERT INTO cell_reports (paper_id, section, main_topic, subtopic, difficulty, state, target, accepted, attempts, fell_back, last_failure)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			paper.ID, rep.Cell.Section, rep.Cell.Topic.MainTopic, rep.Cell.Topic.Subtopic,
			rep.Cell.Tier.String(), string(rep.State), rep.Cell.Target,
			rep.Record.Accepted, rep.Record.Attempts, rep.FellBack, rep.Record.LastFailure,
		)
		if err != nil {
			return fmt.Errorf("failed to save cell report: %w", err)
		}
	}

	return tx.Commit()
}

// GetPaper loads a stored paper with its questions in question_num order.
func (d *DB) GetPaper(id string) (*Paper, error) {
	var paper Paper
	var cfgJSON, status string
	err := d.db.QueryRow(
		"SELECT id, name, subject, total_requested, total_accepted, incomplete, config, created_at, status FROM papers WHERE id = ?",
		id,
	).Scan(&paper.ID, &paper.Name, &paper.Subject, &paper.TotalRequested,
		&paper.TotalAccepted, &paper.Incomplete, &cfgJSON, &paper.CreatedAt, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("paper not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &paper.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	rows, err := d.db.Query(
		"SELECT id, section, main_topic, subtopic, difficulty, text, options, correct_answer, explanation, refs, image_ref, image_desc, created_at FROM questions WHERE paper_id = ? ORDER BY question_num",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q Question
		var difficulty, optionsJSON, refsJSON string
		err := rows.Scan(&q.ID, &q.Section, &q.MainTopic, &q.Subtopic, &difficulty,
			&q.Text, &optionsJSON, &q.CorrectAnswer, &q.Explanation, &refsJSON,
			&q.ImageRef, &q.ImageDesc, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if q.Difficulty, err = ParseDifficulty(difficulty); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options: %w", err)
		}
		if refsJSON != "" {
			if err := json.Unmarshal([]byte(refsJSON), &q.References); err != nil {
				return nil, fmt.Errorf("failed to unmarshal references: %w", err)
			}
		}
		paper.Questions = append(paper.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	reports, err := d.getCellReports(id)
	if err != nil {
		return nil, err
	}
	paper.Fulfillment = reports

	return &paper, nil
}

func (d *DB) getCellReports(paperID string) ([]CellReport, error) {
	rows, err := d.db.Query(
		"SELECT section, main_topic, subtopic, difficulty, state, target, accepted, attempts, fell_back, last_failure FROM cell_reports WHERE paper_id = ?",
		paperID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get cell reports: %w", err)
	}
	defer rows.Close()

	var reports []CellReport
	for rows.Next() {
		var rep CellReport
		var difficulty, state string
		err := rows.Scan(&rep.Cell.Section, &rep.Cell.Topic.MainTopic, &rep.Cell.Topic.Subtopic,
			&difficulty, &state, &rep.Cell.Target, &rep.Record.Accepted, &rep.Record.Attempts,
			&rep.FellBack, &rep.Record.LastFailure)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cell report: %w", err)
		}
		if rep.Cell.Tier, err = ParseDifficulty(difficulty); err != nil {
			return nil, err
		}
		rep.State = CellState(state)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cell reports: %w", err)
	}
	return reports, nil
}

// GetPapers lists stored papers, newest first, optionally limited.
func (d *DB) GetPapers(limit int) ([]PaperSummary, error) {
	query := "SELECT id, name, subject, total_requested, total_accepted, incomplete, status, created_at FROM papers ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get papers: %w", err)
	}
	defer rows.Close()

	var papers []PaperSummary
	for rows.Next() {
		var p PaperSummary
		err := rows.Scan(&p.ID, &p.Name, &p.Subject, &p.TotalRequested, &p.TotalAccepted,
			&p.Incomplete, &p.Status, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}
	return papers, nil
}
