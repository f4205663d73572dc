package papergen

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "papers.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.CreateTables(); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestSaveAndGetPaper(t *testing.T) {
	db := openTestDB(t)

	paper := &Paper{
		ID:      "paper-1",
		Name:    "Metallurgy Mock Test 1",
		Subject: "Metallurgy",
		Config:  twoSectionConfig(),
		Questions: []Question{
			{
				ID:            "q-1",
				Section:       "Physical Metallurgy",
				MainTopic:     "Phase Diagrams",
				Subtopic:      "Iron-Carbon",
				Difficulty:    Medium,
				Text:          "Which phase forms at the eutectoid point of the iron-carbon system?",
				Options:       []string{"Ferrite", "Pearlite", "Austenite", "Cementite"},
				CorrectAnswer: 1,
				Explanation:   "Pearlite is the lamellar mixture formed by the eutectoid reaction.",
				References:    []string{"Callister, Materials Science"},
				CreatedAt:     time.Now(),
			},
			{
				ID:            "q-2",
				Section:       "Mechanical Behaviour",
				MainTopic:     "Fracture",
				Subtopic:      "Fatigue",
				Difficulty:    Hard,
				Text:          "In the diagram shown, what does the knee of the S-N curve indicate?",
				Options:       []string{"Yield point", "Endurance limit", "Fracture toughness", "Creep onset"},
				CorrectAnswer: 1,
				Explanation:   "Below the endurance limit the steel survives unlimited stress cycles.",
				References:    []string{"ASM Handbook Vol 19"},
				ImageRef:      "fatigue_curve",
				ImageDesc:     "S-N curve for a steel specimen.",
				CreatedAt:     time.Now(),
			},
		},
		Fulfillment: []CellReport{
			{
				Cell: Cell{
					Section: "Mechanical Behaviour",
					Topic:   TopicRef{MainTopic: "Fracture", Subtopic: "Fatigue"},
					Tier:    Hard,
					Target:  2,
				},
				State:    CellPartial,
				FellBack: true,
				Record:   GenerationAttemptRecord{Attempts: 8, Accepted: 1, Rejected: 3, LastFailure: "validation: explanation too short"},
			},
		},
		TotalRequested: 6,
		TotalAccepted:  2,
		Incomplete:     true,
		CreatedAt:      time.Now(),
	}

	if err := db.SavePaper(paper); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetPaper("paper-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != paper.Name || got.Subject != paper.Subject {
		t.Errorf("identity = %q / %q", got.Name, got.Subject)
	}
	if !got.Incomplete || got.TotalAccepted != 2 || got.TotalRequested != 6 {
		t.Errorf("totals = %d/%d incomplete=%v", got.TotalAccepted, got.TotalRequested, got.Incomplete)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(got.Questions))
	}
	q := got.Questions[1]
	if q.Difficulty != Hard || q.CorrectAnswer != 1 || len(q.Options) != 4 {
		t.Errorf("question round trip: difficulty %s, answer %d, options %d",
			q.Difficulty, q.CorrectAnswer, len(q.Options))
	}
	if q.ImageRef != "fatigue_curve" {
		t.Errorf("image ref = %q", q.ImageRef)
	}
	if len(q.References) != 1 || q.References[0] != "ASM Handbook Vol 19" {
		t.Errorf("references = %v", q.References)
	}
	if len(got.Config.Sections) != 2 {
		t.Errorf("config sections = %d, want 2", len(got.Config.Sections))
	}
	if len(got.Fulfillment) != 1 {
		t.Fatalf("fulfillment reports = %d, want 1", len(got.Fulfillment))
	}
	rep := got.Fulfillment[0]
	if rep.State != CellPartial || !rep.FellBack || rep.Record.Attempts != 8 {
		t.Errorf("report round trip: state %s, fell back %v, attempts %d",
			rep.State, rep.FellBack, rep.Record.Attempts)
	}
}

func TestGetPaperNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetPaper("missing"); err == nil {
		t.Fatal("missing paper returned no error")
	}
}

func TestPendingLifecycle(t *testing.T) {
	db := openTestDB(t)
	config := twoSectionConfig()

	if err := db.CreatePending("paper-1", config); err != nil {
		t.Fatal(err)
	}
	papers, err := db.GetPapers(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(papers) != 1 || papers[0].Status != "generating" {
		t.Fatalf("pending list = %+v", papers)
	}

	// A completed run replaces the pending row.
	if err := db.SavePaper(&Paper{ID: "paper-1", Name: config.Name, Subject: config.Subject,
		Config: config, TotalRequested: 6, TotalAccepted: 6, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	papers, err = db.GetPapers(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(papers) != 1 || papers[0].Status != "ready" {
		t.Fatalf("after save: %+v", papers)
	}

	if err := db.CreatePending("paper-2", config); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkFailed("paper-2"); err != nil {
		t.Fatal(err)
	}
	papers, err = db.GetPapers(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(papers) != 1 {
		t.Fatalf("limit 1 returned %d rows", len(papers))
	}
}

func TestSqliteLedger(t *testing.T) {
	db := openTestDB(t)
	ledger := db.Ledger()
	ctx := context.Background()

	fp := Fingerprint("abc123")
	seen, err := ledger.Seen(ctx, fp)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Error("fresh fingerprint reported as seen")
	}

	recorded, err := ledger.Record(ctx, fp, "q-1")
	if err != nil {
		t.Fatal(err)
	}
	if !recorded {
		t.Error("first record did not win")
	}

	recorded, err = ledger.Record(ctx, fp, "q-2")
	if err != nil {
		t.Fatal(err)
	}
	if recorded {
		t.Error("second record of same fingerprint won")
	}

	seen, err = ledger.Seen(ctx, fp)
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Error("recorded fingerprint not seen")
	}

	n, err := db.LedgerSize()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ledger size = %d, want 1", n)
	}
}
