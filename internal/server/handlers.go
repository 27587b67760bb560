package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/glossary-agent/internal/batch"
	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/pipeline"
	"github.com/jonathan/glossary-agent/internal/store"
)

// startBatchRequest is the body of POST /batches. Optional fields are
// pointers so an absent field falls back to the default rather than the
// JSON zero value.
type startBatchRequest struct {
	TermIDs   []string `json:"term_ids,omitempty"`
	ColumnIDs []string `json:"column_ids,omitempty"`
	Tier      string   `json:"tier,omitempty"`
	Section   string   `json:"section,omitempty"`

	Mode              string `json:"mode,omitempty"`
	BatchSize         *int   `json:"batch_size,omitempty"`
	QualityThreshold  *int   `json:"quality_threshold,omitempty"`
	MaxRetries        *int   `json:"max_retries,omitempty"`
	SkipExisting      *bool  `json:"skip_existing,omitempty"`
	Force             bool   `json:"force,omitempty"`
	InterBatchDelayMS int    `json:"inter_batch_delay_ms,omitempty"`
	Order             string `json:"order,omitempty"`
}

func (req *startBatchRequest) toScope() (batch.Scope, error) {
	scope := batch.Scope{
		TermIDs:   req.TermIDs,
		ColumnIDs: req.ColumnIDs,
		Section:   req.Section,
	}
	if req.Tier != "" {
		tier, err := catalog.ParseTier(req.Tier)
		if err != nil {
			return batch.Scope{}, err
		}
		scope.Tier = tier
	}
	return scope, nil
}

func (req *startBatchRequest) toOptions() (batch.Options, error) {
	opts := batch.DefaultOptions()

	if req.Mode != "" {
		mode, err := pipeline.ParseMode(req.Mode)
		if err != nil {
			return batch.Options{}, err
		}
		opts.Mode = mode
	}
	if req.BatchSize != nil {
		opts.BatchSize = *req.BatchSize
	}
	if req.QualityThreshold != nil {
		opts.QualityThreshold = *req.QualityThreshold
	}
	if req.MaxRetries != nil {
		opts.MaxRetries = *req.MaxRetries
	}
	if req.SkipExisting != nil {
		opts.SkipExisting = *req.SkipExisting
	} else if req.Force {
		// Force implies reprocessing; only an explicit skip_existing=true
		// alongside force is rejected as contradictory.
		opts.SkipExisting = false
	}
	opts.Force = req.Force
	opts.InterBatchDelay = time.Duration(req.InterBatchDelayMS) * time.Millisecond
	if req.Order != "" {
		opts.Order = batch.Order(req.Order)
	}

	return opts, nil
}

// handleStartBatch launches a batch and returns its initial snapshot.
func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var req startBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	scope, err := req.toScope()
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := req.toOptions()
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.manager.StartBatch(r.Context(), scope, opts)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, run)
}

// handleGetBatch returns the current snapshot of a batch.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchID(w, r)
	if !ok {
		return
	}

	run, err := s.manager.GetBatchStatus(id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleCancelBatch requests cancellation and blocks until in-flight units
// have drained.
func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchID(w, r)
	if !ok {
		return
	}

	run, err := s.manager.CancelBatch(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleBatchEvents streams per-unit progress as SSE until the batch
// finishes or the client disconnects.
func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchID(w, r)
	if !ok {
		return
	}

	events, cancel, err := s.manager.Subscribe(id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	defer cancel()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if run, err := s.manager.GetBatchStatus(id); err == nil {
		sse.WriteEvent("status", run) //nolint:errcheck
	}

	for {
		select {
		case event, open := <-events:
			if !open {
				final, err := s.manager.GetBatchStatus(id)
				if err != nil {
					sse.WriteError(err.Error())
					return
				}
				sse.WriteComplete(id.String(), string(final.Status))
				return
			}
			if err := sse.WriteEvent("progress", event); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// unitResponse is the wire form of one generation unit.
type unitResponse struct {
	TermID             string    `json:"term_id"`
	ColumnID           string    `json:"column_id"`
	Phase              string    `json:"phase"`
	Content            string    `json:"content,omitempty"`
	QualityScore       int       `json:"quality_score,omitempty"`
	EvaluationFeedback string    `json:"evaluation_feedback,omitempty"`
	TokensIn           int       `json:"tokens_in"`
	TokensOut          int       `json:"tokens_out"`
	CostUSD            float64   `json:"cost_usd"`
	Attempts           int       `json:"attempts"`
	LastError          string    `json:"last_error,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toUnitResponse(unit store.GenerationUnit) unitResponse {
	return unitResponse{
		TermID:             unit.TermID,
		ColumnID:           unit.ColumnID,
		Phase:              string(unit.Phase),
		Content:            unit.Content,
		QualityScore:       unit.QualityScore,
		EvaluationFeedback: unit.EvaluationFeedback,
		TokensIn:           unit.TokensIn,
		TokensOut:          unit.TokensOut,
		CostUSD:            unit.CostUSD,
		Attempts:           unit.Attempts,
		LastError:          unit.LastError,
		UpdatedAt:          unit.UpdatedAt,
	}
}

// handleTermUnits lists all persisted units for one term.
func (s *Server) handleTermUnits(w http.ResponseWriter, r *http.Request) {
	termID := r.PathValue("id")

	term, found, err := s.terms.GetTerm(r.Context(), termID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if !found {
		s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("term not found: %s", termID))
		return
	}

	units, err := s.units.ListByTerm(r.Context(), termID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	resp := struct {
		TermID   string         `json:"term_id"`
		TermName string         `json:"term_name"`
		Units    []unitResponse `json:"units"`
	}{
		TermID:   term.ID,
		TermName: term.Name,
		Units:    make([]unitResponse, 0, len(units)),
	}
	for _, unit := range units {
		resp.Units = append(resp.Units, toUnitResponse(unit))
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// columnResponse is the wire form of one catalog column.
type columnResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Section string `json:"section"`
	Tier    string `json:"tier"`
	Type    string `json:"type"`
	Order   int    `json:"order"`
}

// handleListColumns lists catalog columns, optionally filtered by tier
// and section query parameters.
func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	filter := catalog.Filter{Section: r.URL.Query().Get("section")}
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, err := catalog.ParseTier(raw)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Tier = tier
	}

	columns := s.registry.ListColumns(filter)
	resp := struct {
		Columns []columnResponse `json:"columns"`
		Total   int              `json:"total"`
	}{
		Columns: make([]columnResponse, 0, len(columns)),
		Total:   len(columns),
	}
	for _, col := range columns {
		resp.Columns = append(resp.Columns, columnResponse{
			ID:      col.ID,
			Title:   col.Title,
			Section: col.Section,
			Tier:    string(col.Tier),
			Type:    string(col.Type),
			Order:   col.Order,
		})
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// batchID parses the {id} path segment, writing a 400 on failure.
func (s *Server) batchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid batch id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}
