package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gomic/domain/core"
	"gomic/internal/report"
	"gomic/models"
)

const defaultListLimit = 50

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			a.writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	runs, err := a.ledger.ListRuns(r.Context(), limit)
	if err != nil {
		a.logger.Error("list runs: %v", err)
		a.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*models.EstimationRun{}
	}
	a.writeJSON(w, http.StatusOK, runs)
}

func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, scores, err := a.ledger.GetRun(r.Context(), id)
	if core.IsNotFoundError(err) {
		a.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		a.logger.Error("get run %s: %v", id, err)
		a.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":    run,
		"scores": scores,
	})
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	runs, err := a.ledger.ListRuns(r.Context(), 0)
	if err != nil {
		a.logger.Error("report: %v", err)
		a.writeError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}

	scores := make(map[uuid.UUID][]models.RunScore, len(runs))
	for _, run := range runs {
		_, runScores, err := a.ledger.GetRun(r.Context(), run.ID)
		if err != nil {
			continue
		}
		scores[run.ID] = runScores
	}

	md := report.LedgerMarkdown(runs, scores)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report.HTML(md))
}

func (a *App) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("encode response: %v", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}
