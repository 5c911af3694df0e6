package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/dusk-indust/pyannotate/internal/analyzer"
	"github.com/dusk-indust/pyannotate/internal/annotate"
	"github.com/dusk-indust/pyannotate/internal/graph"
	"github.com/dusk-indust/pyannotate/internal/parsedmap"
	"github.com/dusk-indust/pyannotate/internal/pysyntax"
	"github.com/dusk-indust/pyannotate/internal/store"
	"github.com/dusk-indust/pyannotate/internal/summarize"
)

// ParseRequest is the body of POST /api/v1/parse.
type ParseRequest struct {
	Source string `json:"source" validate:"required"`
}

// UploadRequest is the body of POST /api/v1/files.
type UploadRequest struct {
	Name     string `json:"name" validate:"max=100"`
	FileName string `json:"fileName" validate:"required,max=100"`
	Content  string `json:"content" validate:"required"`
}

// AnnotateRequest is the body of POST /api/v1/files/{id}/annotations.
type AnnotateRequest struct {
	FunctionName string `json:"functionName" validate:"required,max=100"`
}

// FileResponse wraps a stored file with its decoded map.
type FileResponse struct {
	store.SourceFile
	Map *parsedmap.ParsedMap `json:"map,omitempty"`
}

// ChainsResponse is the body of GET .../chains.
type ChainsResponse struct {
	Function  string            `json:"function"`
	Direction graph.Direction   `json:"direction"`
	Chains    []graph.CallChain `json:"chains"`
}

// HealthResponse is the body of GET /healthz. Index is omitted when the
// server runs without a call-graph index.
type HealthResponse struct {
	Status string            `json:"status"`
	Index  *graph.GraphStats `json:"index,omitempty"`
}

type failure struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.IndexStats(r.Context())
	if err != nil {
		s.logger.Warn("index unavailable", "error", err)
		writeFailure(w, http.StatusServiceUnavailable, "call-graph index unavailable")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Index: stats})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !s.decode(w, r, &req) {
		return
	}
	pm, err := s.analyzer.Analyze(r.Context(), []byte(req.Source))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pm)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := s.svc.Upload(r.Context(), owner(r), annotate.Upload{
		Name:     req.Name,
		FileName: req.FileName,
		Content:  req.Content,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := FileResponse{SourceFile: *f}
	resp.Content = ""
	resp.ParsedMap = nil
	if resp.Map, err = parsedmap.Decode(f.ParsedMap); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.ListFiles(r.Context(), owner(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	if files == nil {
		files = []store.SourceFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.GetFile(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := FileResponse{SourceFile: *f}
	resp.ParsedMap = nil
	if resp.Map, err = parsedmap.Decode(f.ParsedMap); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteFile(r.Context(), owner(r), r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleParsedMap(w http.ResponseWriter, r *http.Request) {
	pm, err := s.svc.ParsedMap(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pm)
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Diagram(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(d))
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := graph.ParseDirection(q.Get("direction"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	depth := 0
	if v := q.Get("depth"); v != "" {
		if depth, err = strconv.Atoi(v); err != nil || depth < 1 {
			writeFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid depth %q", v))
			return
		}
	}
	name := r.PathValue("name")
	chains, err := s.svc.CallChains(r.Context(), owner(r), r.PathValue("id"), name, dir, depth)
	if err != nil {
		s.fail(w, err)
		return
	}
	if chains == nil {
		chains = []graph.CallChain{}
	}
	writeJSON(w, http.StatusOK, ChainsResponse{Function: name, Direction: dir, Chains: chains})
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotateRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.svc.Annotate(r.Context(), owner(r), r.PathValue("id"), req.FunctionName)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	anns, err := s.svc.ListAnnotations(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if anns == nil {
		anns = []store.Annotation{}
	}
	writeJSON(w, http.StatusOK, anns)
}

func (s *Server) handleGetAnnotation(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.GetAnnotation(r.Context(), owner(r), r.PathValue("id"), r.PathValue("annotationID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func owner(r *http.Request) string {
	return r.Header.Get(OwnerHeader)
}

// decode reads and validates a JSON body, answering 400/413 itself on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeFailure(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeFailure(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return fmt.Sprintf("%s is required", fe.Field())
	}
	return fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param())
}

// fail maps a service error to its HTTP status.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, pysyntax.ErrSyntax):
		status, msg = http.StatusBadRequest, "file contains a syntax error"
	case errors.Is(err, annotate.ErrEmptyUpload):
		status, msg = http.StatusBadRequest, "content is empty"
	case errors.Is(err, annotate.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, OwnerHeader+" header is required"
	case errors.Is(err, annotate.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, annotate.ErrAnnotationNotFound):
		status, msg = http.StatusNotFound, "annotation not found"
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, "file not found"
	case errors.Is(err, annotate.ErrFunctionNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, annotate.ErrTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, analyzer.ErrTimeout):
		status, msg = http.StatusUnprocessableEntity, "parse timed out"
	case errors.Is(err, summarize.ErrEmptyResponse):
		status, msg = http.StatusBadGateway, "summarizer returned no text"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeFailure(w, status, msg)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failure{Status: "fail", Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
