package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/engine"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
	"github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
)

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(serverHeader)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limitBody)
		r.Group(func(r chi.Router) {
			r.Use(s.instrument)

			r.Post("/validate", s.handleValidate)
			r.Post("/layout", s.handleLayout)

			r.Get("/scores", s.handleListScores)
			r.Get("/scores/{id}", s.handleGetScore)
			r.Put("/scores/{id}", s.handlePutScore)
			r.Delete("/scores/{id}", s.handleDeleteScore)
			r.Get("/scores/{id}/layout", s.handleLayoutScore)
		})
	})

	return r
}

// =============================================================================
// Responses
// =============================================================================

type validateResponse struct {
	Document *document.Document `json:"document"`
	Report   reportJSON         `json:"report"`
}

type reportJSON struct {
	Passes     int         `json:"passes"`
	Validated  int         `json:"validated"`
	Skipped    int         `json:"skipped"`
	Unit       int         `json:"unit"`
	Splits     []splitJSON `json:"splits"`
	Mismatches int         `json:"mismatches"`
}

type splitJSON struct {
	UUID      int64  `json:"uuid"`
	Number    string `json:"number"`
	MaxDiv    int    `json:"maxDiv"`
	NewUUID   int64  `json:"newUuid"`
	NewNumber string `json:"newNumber"`
}

type layoutResponse struct {
	Width    float64                 `json:"width"`
	Measures int                     `json:"measures"`
	Layouts  []*engine.MeasureLayout `json:"layouts"`
	Stats    statsJSON               `json:"stats"`
}

type statsJSON struct {
	Passes        int     `json:"passes"`
	Splits        int     `json:"splits"`
	ValidateMS    float64 `json:"validateMs"`
	LayoutMS      float64 `json:"layoutMs"`
	DocumentHit   bool    `json:"documentHit"`
	MeasureHits   int     `json:"measureHits"`
	MeasureMisses int     `json:"measureMisses"`
}

func newReportJSON(rep *engine.Report) reportJSON {
	out := reportJSON{Splits: []splitJSON{}}
	if rep == nil {
		return out
	}
	out.Passes = rep.Passes
	out.Validated = rep.Validated
	out.Skipped = rep.Skipped
	out.Unit = rep.Unit
	out.Mismatches = len(rep.Mismatches)
	for _, sp := range rep.Splits {
		out.Splits = append(out.Splits, splitJSON(sp))
	}
	return out
}

func newLayoutResponse(res *pipeline.Result) layoutResponse {
	return layoutResponse{
		Width:    res.Width,
		Measures: res.Stats.Measures,
		Layouts:  res.Layouts,
		Stats: statsJSON{
			Passes:        res.Stats.Passes,
			Splits:        res.Stats.Splits,
			ValidateMS:    millis(res.Stats.ValidateTime),
			LayoutMS:      millis(res.Stats.LayoutTime),
			DocumentHit:   res.CacheInfo.DocumentHit,
			MeasureHits:   res.CacheInfo.MeasureHits,
			MeasureMisses: res.CacheInfo.MeasureMisses,
		},
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeScore(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := s.pipelineOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.runner.Validate(r.Context(), doc, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, validateResponse{Document: doc, Report: newReportJSON(report)})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeScore(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.layout(w, r, doc)
}

func (s *Server) handleLayoutScore(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.layout(w, r, doc)
}

func (s *Server) layout(w http.ResponseWriter, r *http.Request, doc *document.Document) {
	opts, err := s.pipelineOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.runner.Execute(r.Context(), doc, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newLayoutResponse(res))
}

func (s *Server) handleListScores(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"scores": ids})
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := decodeScore(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Put(r.Context(), id, doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "measures": len(doc.Measures)})
}

func (s *Server) handleDeleteScore(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Request Helpers
// =============================================================================

// decodeScore reads the request body as a score. YAML is accepted when the
// Content-Type says so.
func decodeScore(r *http.Request) (*document.Document, error) {
	format := document.FormatJSON
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = document.FormatYAML
	}
	return document.Decode(r.Body, format)
}

// pipelineOptions applies the request's query overrides to the server
// defaults.
func (s *Server) pipelineOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.opts.Pipeline
	q := r.URL.Query()
	if v := q.Get("merge"); v != "" {
		opts.Merge = v
	}
	for name, dst := range map[string]*bool{
		"approximate": &opts.Approximate,
		"refresh":     &opts.Refresh,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "query parameter %s: %q is not a boolean", name, v)
		}
		*dst = b
	}
	return opts, nil
}
