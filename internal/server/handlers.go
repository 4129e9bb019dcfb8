package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/askdb/internal/pipeline"
	"github.com/leapstack-labs/askdb/internal/server/notifier"
)

// historyPageSize is how many entries the history endpoints return by
// default.
const historyPageSize = 50

type queryRequest struct {
	Question           string `json:"question"`
	IncludeExplanation bool   `json:"include_explanation"`
	MaxResults         int    `json:"max_results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// progressSignal is one stage-progress SSE patch.
type progressSignal struct {
	Stage      string `json:"stage"`
	Percent    int    `json:"percent"`
	SQLPreview string `json:"sql_preview,omitempty"`
}

// resultSignal carries the final pipeline result over SSE.
type resultSignal struct {
	Done   bool            `json:"done"`
	Result pipeline.Result `json:"result"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}

	result := s.pipeline.Run(r.Context(), pipeline.Request{
		Question:           req.Question,
		IncludeExplanation: req.IncludeExplanation,
		MaxResults:         req.MaxResults,
	})
	s.notifier.Broadcast(notifier.Event{
		Question: req.Question,
		SQLQuery: result.SQLQuery,
		Rows:     len(result.Results),
	})

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("max_results"))

	sse := datastar.NewSSE(w, r)

	result := s.pipeline.RunStreaming(r.Context(), pipeline.Request{
		Question:           question,
		IncludeExplanation: true,
		MaxResults:         maxResults,
	}, func(stage string, percent int, sqlPreview string) {
		if err := patchSignals(sse, progressSignal{
			Stage:      stage,
			Percent:    percent,
			SQLPreview: sqlPreview,
		}); err != nil {
			s.logger.Debug("progress patch dropped", "stage", stage, "error", err)
		}
	})
	s.notifier.Broadcast(notifier.Event{
		Question: question,
		SQLQuery: result.SQLQuery,
		Rows:     len(result.Results),
	})

	if err := patchSignals(sse, resultSignal{Done: true, Result: result}); err != nil {
		_ = sse.ConsoleError(err)
	}
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.store.ListTables(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	var tables []string
	if table := strings.TrimSpace(r.URL.Query().Get("table")); table != "" {
		tables = []string{table}
	}

	schemas, err := s.store.SchemaInfo(r.Context(), tables)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": schemas})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = historyPageSize
	}

	records, err := s.history.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

// handleHistoryStream is the long-lived SSE endpoint for history updates.
// It sends the current page immediately, then re-sends whenever a pipeline
// run completes.
func (s *Server) handleHistoryStream(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	if err := s.sendHistory(sse, r); err != nil {
		_ = sse.ConsoleError(err)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			s.logger.Debug("pushing history update", "question", ev.Question, "rows", ev.Rows)
			if err := s.sendHistory(sse, r); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (s *Server) sendHistory(sse *datastar.ServerSentEventGenerator, r *http.Request) error {
	records, err := s.history.ListRecent(r.Context(), historyPageSize)
	if err != nil {
		return err
	}
	return patchSignals(sse, map[string]any{"history": records})
}

func patchSignals(sse *datastar.ServerSentEventGenerator, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sse.PatchSignals(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
