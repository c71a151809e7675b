package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"promo-pipelines/configs"
	"promo-pipelines/ledger"
	"promo-pipelines/logger"
	"promo-pipelines/pipelines"
	"promo-pipelines/pipelines/promotion"
	"promo-pipelines/types"
)

// runner serializes runs: the back office allows one browser session and the
// upload ledger has a single writer
type runner struct {
	cfg      *configs.Env
	mu       sync.Mutex
	newState func(ctx context.Context, cfg *configs.Env) (*pipelines.State, error)
}

func main() {
	cfg, err := configs.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	rn := &runner{cfg: cfg, newState: pipelines.NewState}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      rn.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func (rn *runner) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/pipelines", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"pipelines": pipelines.List()})
	})
	mux.HandleFunc("/status", rn.handleStatus)
	mux.HandleFunc("/run/", rn.handleRun)
	return mux
}

func (rn *runner) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := ledger.NewFileStore(rn.cfg.OutputDir).Load()
	w.Header().Set("Content-Type", "application/json")
	if errors.Is(err, ledger.ErrNoLedger) {
		json.NewEncoder(w).Encode(map[string]interface{}{"in_progress": false})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"in_progress": true, "ledger": doc})
}

// handleRun serves POST /run/{product|brand|all}
func (rn *runner) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/run/"), "/")
	kinds := types.Kinds
	if name != "all" {
		kind, err := types.ParseCampaignKind(name)
		if err != nil {
			writeError(w, http.StatusNotFound, "pipeline not found")
			return
		}
		kinds = []types.CampaignKind{kind}
	}

	var req types.PipelineRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	mode, err := promotion.ParseResumeMode(req.Resume)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !rn.mu.TryLock() {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer rn.mu.Unlock()

	logger.Info("pipeline started", zap.String("pipeline", name), zap.String("sheet", req.SheetName), zap.Bool("dry_run", req.DryRun))

	state, err := rn.newState(r.Context(), rn.cfg)
	if err != nil {
		logger.Error("pipeline setup failed", zap.String("pipeline", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer state.Close()

	reports, err := promotion.Execute(state, kinds, pipelines.RunOptions{SheetName: req.SheetName, DryRun: req.DryRun}, mode)

	resp := types.PipelineResponse{Success: err == nil, Reports: reports}
	for _, rep := range reports {
		if !req.DryRun && !rep.AllSucceeded() {
			resp.Success = false
		}
	}
	if err != nil {
		logger.Error("pipeline failed", zap.String("pipeline", name), zap.Error(err))
		resp.Error = err.Error()
	}
	logger.Info("pipeline complete", zap.String("pipeline", name), zap.Bool("success", resp.Success))

	w.Header().Set("Content-Type", "application/json")
	if !resp.Success {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.PipelineResponse{
		Success: false,
		Error:   message,
	})
}
