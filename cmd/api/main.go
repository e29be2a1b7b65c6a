package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"yt-pulse/internal/adapters/repo"
	"yt-pulse/internal/domain"
	"yt-pulse/internal/infra/config"
	"yt-pulse/internal/infra/db"
	httpinfra "yt-pulse/internal/infra/http"
	applog "yt-pulse/internal/infra/log"
	"yt-pulse/internal/infra/metrics"
)

// The api binary serves the read-only monitoring surface: run outcomes,
// flagged runs and per-channel row counts. It never mutates pipeline state.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: database connection failed")
	}
	defer pool.Close()

	reporter := repo.NewPostgres(pool)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	registerRoutes(server.Router, reporter)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api: server stopped")
		}
	}()

	logger.Info().Int("port", cfg.Port).Msg("api: started")
	<-ctx.Done()
	logger.Info().Msg("api: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func registerRoutes(r chi.Router, reporter domain.RunReporter) {
	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		listRuns(w, req, reporter.ListRuns)
	})
	r.Get("/api/runs/flagged", func(w http.ResponseWriter, req *http.Request) {
		listRuns(w, req, reporter.ListFlaggedRuns)
	})
	r.Get("/api/channels/{id}/summary", func(w http.ResponseWriter, req *http.Request) {
		channelID, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil || channelID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid channel id")
			return
		}
		counts, err := reporter.ChannelCounts(req.Context(), channelID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load channel summary")
			return
		}
		writeJSON(w, channelSummaryResponse{
			ChannelID:   counts.ChannelID,
			Videos:      counts.Videos,
			Metrics:     counts.Metrics,
			Comments:    counts.Comments,
			Annotated:   counts.Annotated,
			LastRunDate: formatDay(counts.LastRunDate),
		})
	})
}

func listRuns(w http.ResponseWriter, req *http.Request, list func(context.Context, time.Time) ([]domain.RunSummary, error)) {
	days := 7
	if raw := req.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	summaries, err := list(req.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}

	out := make([]runResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toRunResponse(s))
	}
	writeJSON(w, map[string]any{"runs": out})
}

type runResponse struct {
	ID           int64    `json:"id"`
	ChannelID    int64    `json:"channel_id"`
	ChannelTitle string   `json:"channel_title"`
	Kind         string   `json:"kind"`
	RunDate      string   `json:"run_date"`
	State        string   `json:"state"`
	StartedAt    string   `json:"started_at"`
	FinishedAt   string   `json:"finished_at,omitempty"`
	Items        int      `json:"items_processed"`
	ErrorSummary string   `json:"error_summary,omitempty"`
	Flagged      bool     `json:"flagged"`
	FlagReasons  []string `json:"flag_reasons,omitempty"`
}

func toRunResponse(s domain.RunSummary) runResponse {
	resp := runResponse{
		ID:           s.Run.ID,
		ChannelID:    s.Run.ChannelID,
		ChannelTitle: s.ChannelTitle,
		Kind:         string(s.Run.Kind),
		RunDate:      s.Run.RunDate.Format("2006-01-02"),
		State:        string(s.Run.State),
		StartedAt:    s.Run.StartedAt.UTC().Format(time.RFC3339),
		Items:        s.Run.ItemsProcessed,
		ErrorSummary: s.Run.ErrorSummary,
		Flagged:      s.Run.Flagged,
		FlagReasons:  s.Run.FlagReasons,
	}
	if s.Run.FinishedAt != nil {
		resp.FinishedAt = s.Run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type channelSummaryResponse struct {
	ChannelID   int64  `json:"channel_id"`
	Videos      int64  `json:"videos"`
	Metrics     int64  `json:"metric_snapshots"`
	Comments    int64  `json:"comments"`
	Annotated   int64  `json:"annotated_comments"`
	LastRunDate string `json:"last_run_date,omitempty"`
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
