package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldserve/fieldserve/internal/csvtext"
	"github.com/fieldserve/fieldserve/internal/importer"
	"github.com/fieldserve/fieldserve/internal/job"
	"github.com/fieldserve/fieldserve/internal/logging"
)

// submitRequest is the body of POST /api/imports.
//
// Payload carries the file content: raw text for CSV kinds, base64 for the
// archive kind (ZIP bytes do not survive JSON string transport).
type submitRequest struct {
	EntityKind string `json:"entityKind"`
	Filename   string `json:"filename"`
	Payload    string `json:"payload"`
}

type submitResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

// handleSubmit accepts a file for asynchronous import and returns the job id
// immediately. Payload content problems are never rejected here; they surface
// through the job's status topic.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.EntityKind == "" {
		writeError(w, r, http.StatusBadRequest, "entityKind is required")
		return
	}
	if req.Filename == "" {
		writeError(w, r, http.StatusBadRequest, "filename is required")
		return
	}
	if req.Payload == "" {
		writeError(w, r, http.StatusBadRequest, "payload is required")
		return
	}

	kind := importer.Kind(req.EntityKind)

	payload := []byte(req.Payload)
	if kind == importer.KindArchive {
		decoded, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "archive payload must be base64 encoded")
			return
		}
		payload = decoded
	}

	jobID, err := s.queue.Submit(kind, req.Filename, payload)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrUnsupportedKind):
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("unsupported entity kind %q", req.EntityKind))
		case errors.Is(err, job.ErrQueueClosed):
			writeError(w, r, http.StatusServiceUnavailable, "service is shutting down")
		default:
			logger.Error("job submission failed", "error", err)
			writeError(w, r, http.StatusInternalServerError, "failed to submit job")
		}
		return
	}

	logger.Info("job submitted", "job_id", jobID, "kind", kind, "file", req.Filename)
	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:   jobID,
		Message: "import accepted",
	})
}

// handleStatus answers a synchronous status query with the latest snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	snap, err := s.pub.Last(jobID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEvents streams status snapshots for one job as server-sent events.
// The current snapshot is replayed immediately; the stream ends with a
// "complete" event once the job reaches a terminal state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	logger := logging.FromContext(r.Context())

	ch, err := s.pub.Subscribe(jobID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "job not found")
		return
	}

	// ResponseController reaches http.Flusher through middleware wrappers.
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "retry: %d\n\n", sseRetryHint.Milliseconds())
	if err := rc.Flush(); err != nil {
		writeError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-ch:
			if !open {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				logger.Error("snapshot marshal failed", "job_id", jobID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			rc.Flush()
		}
	}
}

// handleReport returns the completed job's report as JSON. Until the job
// completes there is no report, and an expired job is indistinguishable from
// an unknown one.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, status, msg := s.lookupReport(r)
	if report == nil {
		writeError(w, r, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleReportText returns the report rendered as plain text, offered as a
// download.
func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request) {
	report, status, msg := s.lookupReport(r)
	if report == nil {
		writeError(w, r, status, msg)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="import-report.txt"`)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, report.RenderText())
}

func (s *Server) lookupReport(r *http.Request) (*importer.Report, int, string) {
	jobID := chi.URLParam(r, "jobID")

	snap, err := s.pub.Last(jobID)
	if err != nil {
		return nil, http.StatusNotFound, "job not found"
	}
	if snap.Status.State != job.StateCompleted || snap.Status.Report == nil {
		return nil, http.StatusNotFound, "report not available: job has not completed"
	}
	return snap.Status.Report, 0, ""
}

// previewRequest is the body of POST /api/imports/preview.
type previewRequest struct {
	EntityKind string `json:"entityKind"`
	Payload    string `json:"payload"`
}

type previewResponse struct {
	Headers   []string         `json:"headers"`
	Delimiter string           `json:"delimiter"`
	RowCount  int              `json:"rowCount"`
	Preview   []string         `json:"preview"`
	ValidRows int              `json:"validRows"`
	Issues    []importer.Issue `json:"issues,omitempty"`
}

// handlePreview parses a payload without importing it. When an entity kind is
// given the rows are also dry-run through the mapper so the client can show
// what an import would skip.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Payload == "" {
		writeError(w, r, http.StatusBadRequest, "payload is required")
		return
	}

	table, err := csvtext.Parse(csvtext.Sanitize(req.Payload))
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := previewResponse{
		Headers:   table.Headers,
		Delimiter: string(table.Delimiter),
		RowCount:  len(table.Rows),
		Preview:   table.Preview,
	}

	if req.EntityKind != "" {
		def, ok := importer.Get(importer.Kind(req.EntityKind))
		if !ok {
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("unsupported entity kind %q", req.EntityKind))
			return
		}
		headers := importer.NewHeaderIndex(table.Headers)
		for i, row := range table.Rows {
			rec, issues := def.Map(headers, row, i+1)
			if rec != nil {
				resp.ValidRows++
			}
			resp.Issues = append(resp.Issues, issues...)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type kindInfo struct {
	Kind    string   `json:"kind"`
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
}

// handleListKinds returns the importable entity kinds and their expected
// columns, for building upload forms.
func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	defs := importer.All()
	kinds := make([]kindInfo, 0, len(defs)+1)
	for _, def := range defs {
		kinds = append(kinds, kindInfo{
			Kind:    string(def.Kind),
			Label:   def.Label,
			Columns: def.Columns(),
		})
	}
	kinds = append(kinds, kindInfo{
		Kind:  string(importer.KindArchive),
		Label: "ZIP archive (multiple files)",
	})
	writeJSON(w, http.StatusOK, kinds)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
