package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papergen"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "Paper config YAML file (required)")
		dbPath     = flag.String("db", "./papers.db", "SQLite database for papers and the dedup ledger")
		outputFile = flag.String("output", "", "Output file for paper JSON (default: stdout)")
		csvFile    = flag.String("csv", "", "Also export the paper as CSV to this file")
		logDir     = flag.String("logdir", "log", "Directory for per-run audit logs")
		apiKey     = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		timeout    = flag.Duration("timeout", 30*time.Minute, "Overall assembly timeout")
		noLedger   = flag.Bool("no-ledger", false, "Use an in-memory ledger (disables cross-run dedup)")
		devLog     = flag.Bool("dev", false, "Human-readable development logging")
	)

	flag.Parse()

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	if *configPath == "" {
		log.Fatal("Paper config is required. Use -config flag.")
	}
	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}

	logger, err := newLogger(*devLog)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	config, err := papergen.LoadPaperConfig(*configPath)
	if err != nil {
		sugar.Fatalw("failed to load paper config", "path", *configPath, "error", err)
	}

	genCfg := papergen.ConfigFromEnv()

	var ledger papergen.Ledger
	var db *papergen.DB
	if *noLedger {
		ledger = papergen.NewMemoryLedger()
	} else {
		db, err = papergen.OpenDB(*dbPath)
		if err != nil {
			sugar.Fatalw("failed to open database", "path", *dbPath, "error", err)
		}
		defer db.Close()
		if err := db.CreateTables(); err != nil {
			sugar.Fatalw("failed to create tables", "error", err)
		}
		ledger = db.Ledger()
	}

	paperID := config.ID
	if paperID == "" {
		paperID = fmt.Sprintf("paper-%d", time.Now().Unix())
		config.ID = paperID
	}

	runlog, err := papergen.NewRunLogger(*logDir, paperID, config)
	if err != nil {
		sugar.Warnw("continuing without run audit log", "error", err)
	} else {
		defer runlog.Close()
	}

	text := papergen.NewOpenAITextGenerator(*apiKey, genCfg)
	vision := papergen.NewOpenAIVisionGenerator(*apiKey, genCfg)
	orch := papergen.NewOrchestrator(config.Subject, text, vision, ledger, genCfg, sugar, runlog)
	assembler := papergen.NewAssembler(orch, genCfg, sugar)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	paper, err := assembler.Assemble(ctx, config)
	if err != nil {
		sugar.Fatalw("paper assembly aborted", "error", err)
	}

	if db != nil {
		if err := db.SavePaper(paper); err != nil {
			sugar.Errorw("failed to persist paper", "error", err)
		}
	}

	output, err := json.MarshalIndent(paper, "", "  ")
	if err != nil {
		sugar.Fatalw("failed to marshal paper", "error", err)
	}
	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			sugar.Fatalw("failed to write output file", "error", err)
		}
		sugar.Infow("paper saved", "path", *outputFile)
	} else {
		fmt.Println(string(output))
	}

	if *csvFile != "" {
		f, err := os.Create(*csvFile)
		if err != nil {
			sugar.Fatalw("failed to create CSV file", "error", err)
		}
		if err := papergen.WriteCSV(paper, f); err != nil {
			f.Close()
			sugar.Fatalw("failed to write CSV", "error", err)
		}
		f.Close()
		sugar.Infow("CSV exported", "path", *csvFile, "questions", len(paper.Questions))
	}

	if paper.Incomplete {
		sugar.Warnw("paper is incomplete",
			"accepted", paper.TotalAccepted,
			"requested", paper.TotalRequested,
			"underfilled_cells", len(paper.Fulfillment))
		for _, rep := range paper.Fulfillment {
			sugar.Warnw("underfilled cell",
				"cell", rep.Cell.String(),
				"state", string(rep.State),
				"accepted", rep.Record.Accepted,
				"target", rep.Cell.Target,
				"last_failure", rep.Record.LastFailure)
		}
		os.Exit(2)
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
