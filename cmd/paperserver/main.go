package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"papergen"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Server exposes the assembled-paper surface over HTTP: submit a config,
// poll its status, fetch or export the finished paper. All decisions happen
// in the papergen package; this is presentation only.
type Server struct {
	db     *papergen.DB
	store  *sessions.CookieStore
	apiKey string
	genCfg papergen.GenerationConfig
	logDir string
	log    *zap.SugaredLogger
}

const recentLimit = 10

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	dbPath := os.Getenv("PAPERGEN_DB")
	if dbPath == "" {
		dbPath = "./papers.db"
	}
	sessionSecret := os.Getenv("PAPERGEN_SESSION_SECRET")
	if sessionSecret == "" {
		sessionSecret = "papergen-dev-secret"
	}
	addr := os.Getenv("PAPERGEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	db, err := papergen.OpenDB(dbPath)
	if err != nil {
		sugar.Fatalw("failed to open database", "path", dbPath, "error", err)
	}
	defer db.Close()
	if err := db.CreateTables(); err != nil {
		sugar.Fatalw("failed to create tables", "error", err)
	}

	srv := &Server{
		db:     db,
		store:  sessions.NewCookieStore([]byte(sessionSecret)),
		apiKey: apiKey,
		genCfg: papergen.ConfigFromEnv(),
		logDir: "log",
		log:    sugar,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /papers", srv.handleCreatePaper)
	mux.HandleFunc("GET /papers", srv.handleListPapers)
	mux.HandleFunc("GET /papers/{id}", srv.handleGetPaper)
	mux.HandleFunc("GET /papers/{id}/csv", srv.handleExportCSV)
	mux.HandleFunc("GET /papers/recent", srv.handleRecentPapers)

	sugar.Infow("paperserver listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		sugar.Fatalw("server stopped", "error", err)
	}
}

// handleCreatePaper accepts a PaperConfig, kicks off assembly in the
// background, and returns the paper ID for polling.
func (s *Server) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	var config papergen.PaperConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("invalid paper config: %v", err))
		return
	}
	if err := papergen.CheckPaperConfig(config); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	if err := s.db.CreatePending(config.ID, config); err != nil {
		s.log.Errorw("failed to create pending paper", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to create paper")
		return
	}

	s.rememberPaper(w, r, config.ID)
	go s.generatePaper(config)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": config.ID, "status": "generating"})
}

// generatePaper runs one assembly in the background, the same flow the CLI
// drives synchronously.
func (s *Server) generatePaper(config papergen.PaperConfig) {
	runlog, err := papergen.NewRunLogger(s.logDir, config.ID, config)
	if err != nil {
		s.log.Warnw("continuing without run audit log", "error", err)
	} else {
		defer runlog.Close()
	}

	text := papergen.NewOpenAITextGenerator(s.apiKey, s.genCfg)
	vision := papergen.NewOpenAIVisionGenerator(s.apiKey, s.genCfg)
	orch := papergen.NewOrchestrator(config.Subject, text, vision, s.db.Ledger(), s.genCfg, s.log, runlog)
	assembler := papergen.NewAssembler(orch, s.genCfg, s.log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	paper, err := assembler.Assemble(ctx, config)
	if err != nil {
		s.log.Errorw("paper assembly aborted", "paper_id", config.ID, "error", err)
		if err := s.db.MarkFailed(config.ID); err != nil {
			s.log.Errorw("failed to mark paper failed", "paper_id", config.ID, "error", err)
		}
		return
	}
	if err := s.db.SavePaper(paper); err != nil {
		s.log.Errorw("failed to persist paper", "paper_id", config.ID, "error", err)
	}
}

func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := s.db.GetPapers(50)
	if err != nil {
		s.log.Errorw("failed to list papers", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to list papers")
		return
	}
	writeJSON(w, papers)
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	paper, err := s.db.GetPaper(r.PathValue("id"))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httpError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Errorw("failed to get paper", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to get paper")
		return
	}
	writeJSON(w, paper)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	paper, err := s.db.GetPaper(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httpError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Errorw("failed to get paper", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to get paper")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".csv"))
	if err := papergen.WriteCSV(paper, w); err != nil {
		s.log.Errorw("failed to write CSV", "error", err)
	}
}

// handleRecentPapers returns the papers created in this operator's session.
func (s *Server) handleRecentPapers(w http.ResponseWriter, r *http.Request) {
	session, _ := s.store.Get(r, "papergen-session")
	ids, _ := session.Values["recent_papers"].([]string)

	all, err := s.db.GetPapers(0)
	if err != nil {
		s.log.Errorw("failed to list papers", "error", err)
		httpError(w, http.StatusInternalServerError, "failed to list papers")
		return
	}
	byID := make(map[string]papergen.PaperSummary, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}

	papers := make([]papergen.PaperSummary, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			papers = append(papers, p)
		}
	}
	writeJSON(w, papers)
}

// rememberPaper prepends the paper ID to the session's recent list.
func (s *Server) rememberPaper(w http.ResponseWriter, r *http.Request, id string) {
	session, _ := s.store.Get(r, "papergen-session")
	ids, _ := session.Values["recent_papers"].([]string)

	updated := append([]string{id}, ids...)
	if len(updated) > recentLimit {
		updated = updated[:recentLimit]
	}
	session.Values["recent_papers"] = updated
	if err := session.Save(r, w); err != nil {
		s.log.Warnw("failed to save session", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
