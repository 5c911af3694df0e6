// Package annotate ties parsing, persistence, the call-graph index and the
// summarizer together behind owner-scoped operations.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dusk-indust/pyannotate/internal/analyzer"
	"github.com/dusk-indust/pyannotate/internal/export"
	"github.com/dusk-indust/pyannotate/internal/graph"
	"github.com/dusk-indust/pyannotate/internal/parsedmap"
	"github.com/dusk-indust/pyannotate/internal/store"
	"github.com/dusk-indust/pyannotate/internal/summarize"
)

// DefaultMaxUploadBytes caps uploaded source when Config leaves it unset.
const DefaultMaxUploadBytes = 1 << 20

var (
	ErrUnauthorized       = errors.New("annotate: owner id is required")
	ErrForbidden          = errors.New("annotate: file belongs to another owner")
	ErrFunctionNotFound   = errors.New("annotate: function not found in parsed map")
	ErrAnnotationNotFound = errors.New("annotate: annotation not found")
	ErrTooLarge           = errors.New("annotate: upload too large")
	ErrEmptyUpload        = errors.New("annotate: upload is empty")
)

// Config tunes a Service.
type Config struct {
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Service is safe for concurrent use when its collaborators are.
type Service struct {
	files      store.Store
	index      graph.Store
	analyzer   *analyzer.Analyzer
	summarizer summarize.Summarizer
	maxUpload  int64
	logger     *slog.Logger
}

// NewService wires the collaborators. index may be nil, in which case call
// chains and diagrams are computed from the stored map.
func NewService(files store.Store, index graph.Store, an *analyzer.Analyzer, sum summarize.Summarizer, cfg Config) *Service {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		files:      files,
		index:      index,
		analyzer:   an,
		summarizer: sum,
		maxUpload:  cfg.MaxUploadBytes,
		logger:     cfg.Logger,
	}
}

// Upload is a file submitted for parsing.
type Upload struct {
	Name     string
	FileName string
	Content  string
}

// Upload parses u and stores it with its map. A file that does not parse is
// rejected with pysyntax.ErrSyntax and nothing is stored.
func (s *Service) Upload(ctx context.Context, ownerID string, u Upload) (*store.SourceFile, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if int64(len(u.Content)) > s.maxUpload {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(u.Content), s.maxUpload)
	}
	if strings.TrimSpace(u.Content) == "" {
		return nil, ErrEmptyUpload
	}

	pm, err := s.analyzer.Analyze(ctx, []byte(u.Content))
	if err != nil {
		return nil, fmt.Errorf("annotate: parse %s: %w", u.FileName, err)
	}
	if u.FileName != "" {
		name := u.FileName
		pm.File.Path = &name
	}
	data, err := pm.Encode()
	if err != nil {
		return nil, fmt.Errorf("annotate: encode map: %w", err)
	}

	f := &store.SourceFile{
		Name:      u.Name,
		FileName:  u.FileName,
		OwnerID:   ownerID,
		Content:   u.Content,
		ParsedMap: data,
	}
	if f.Name == "" {
		f.Name = u.FileName
	}
	if err := s.files.CreateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("annotate: store file: %w", err)
	}

	if s.index != nil {
		if err := s.index.IndexFile(ctx, f.ID, pm); err != nil {
			if derr := s.files.DeleteFile(ctx, f.ID); derr != nil {
				s.logger.Error("rollback after index failure", "file", f.ID, "error", derr)
			}
			return nil, fmt.Errorf("annotate: index file: %w", err)
		}
	}

	s.logger.Info("file uploaded",
		"file", f.ID, "owner", ownerID, "functions", len(pm.Functions))
	return f, nil
}

// ListFiles returns the owner's files without their content.
func (s *Service) ListFiles(ctx context.Context, ownerID string) ([]store.SourceFile, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	files, err := s.files.ListFiles(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("annotate: list files: %w", err)
	}
	for i := range files {
		files[i].Content = ""
		files[i].ParsedMap = nil
	}
	return files, nil
}

// GetFile returns one file if ownerID owns it.
func (s *Service) GetFile(ctx context.Context, ownerID, fileID string) (*store.SourceFile, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	f, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("annotate: get file %s: %w", fileID, err)
	}
	if f.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return f, nil
}

// DeleteFile removes a file, its annotations and its indexed graph.
func (s *Service) DeleteFile(ctx context.Context, ownerID, fileID string) error {
	if _, err := s.GetFile(ctx, ownerID, fileID); err != nil {
		return err
	}
	if err := s.files.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("annotate: delete file %s: %w", fileID, err)
	}
	if s.index != nil {
		if err := s.index.RemoveFile(ctx, fileID); err != nil {
			s.logger.Warn("index cleanup failed", "file", fileID, "error", err)
		}
	}
	s.logger.Info("file deleted", "file", fileID, "owner", ownerID)
	return nil
}

// ParsedMap decodes the stored map of a file.
func (s *Service) ParsedMap(ctx context.Context, ownerID, fileID string) (*parsedmap.ParsedMap, error) {
	f, err := s.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	return decodeMap(f)
}

// Annotate explains one function of a stored file and saves the result.
// Failures leave the file and its map untouched.
func (s *Service) Annotate(ctx context.Context, ownerID, fileID, function string) (*store.Annotation, error) {
	f, err := s.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	pm, err := decodeMap(f)
	if err != nil {
		return nil, err
	}
	fn, ok := pm.Function(function)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, function)
	}

	text, err := s.summarizer.Summarize(ctx, summarize.Request{
		FunctionName: fn.Name,
		Map:          pm,
		Code:         ExtractLines(f.Content, fn.StartLine, fn.EndLine),
	})
	if err != nil {
		return nil, fmt.Errorf("annotate: explain %s: %w", function, err)
	}

	a := &store.Annotation{
		FileID:       f.ID,
		OwnerID:      ownerID,
		FunctionName: fn.Name,
		Text:         text,
	}
	if err := s.files.AddAnnotation(ctx, a); err != nil {
		return nil, fmt.Errorf("annotate: store annotation: %w", err)
	}
	s.logger.Info("function annotated", "file", f.ID, "function", fn.Name)
	return a, nil
}

// ListAnnotations returns the annotations of a file, oldest first.
func (s *Service) ListAnnotations(ctx context.Context, ownerID, fileID string) ([]store.Annotation, error) {
	if _, err := s.GetFile(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	anns, err := s.files.ListAnnotations(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("annotate: list annotations: %w", err)
	}
	return anns, nil
}

// GetAnnotation returns one annotation of a file.
func (s *Service) GetAnnotation(ctx context.Context, ownerID, fileID, annotationID string) (*store.Annotation, error) {
	if _, err := s.GetFile(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	a, err := s.files.GetAnnotation(ctx, annotationID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrAnnotationNotFound, annotationID)
	case err != nil:
		return nil, fmt.Errorf("annotate: get annotation: %w", err)
	case a.FileID != fileID:
		// Another file's annotation is not visible through this one.
		return nil, fmt.Errorf("%w: %s", ErrAnnotationNotFound, annotationID)
	}
	return a, nil
}

// CallChains walks the call graph from function in the given direction. With
// an index the function is looked up there; without one the stored map is
// indexed into a throwaway MemStore first.
func (s *Service) CallChains(ctx context.Context, ownerID, fileID, function string, dir graph.Direction, maxDepth int) ([]graph.CallChain, error) {
	if maxDepth <= 0 {
		maxDepth = graph.DefaultMaxDepth
	}

	idx := s.index
	if idx == nil {
		pm, err := s.ParsedMap(ctx, ownerID, fileID)
		if err != nil {
			return nil, err
		}
		mem := graph.NewMemStore()
		if err := mem.IndexFile(ctx, fileID, pm); err != nil {
			return nil, err
		}
		idx = mem
	} else if _, err := s.GetFile(ctx, ownerID, fileID); err != nil {
		return nil, err
	}

	node, err := idx.GetFunction(ctx, fileID, function)
	if err != nil {
		return nil, fmt.Errorf("annotate: look up %s: %w", function, err)
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, function)
	}
	chains, err := idx.GetChains(ctx, fileID, function, dir, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("annotate: call chains: %w", err)
	}
	return chains, nil
}

// Diagram renders the file's call graph as Mermaid.
func (s *Service) Diagram(ctx context.Context, ownerID, fileID string) (string, error) {
	pm, err := s.ParsedMap(ctx, ownerID, fileID)
	if err != nil {
		return "", err
	}
	if s.index == nil {
		return export.GenerateMermaid(pm), nil
	}
	return export.GenerateMermaidFromIndex(ctx, s.index, fileID)
}

// IndexStats reports the size of the call-graph index, or nil when the
// service runs without one.
func (s *Service) IndexStats(ctx context.Context) (*graph.GraphStats, error) {
	if s.index == nil {
		return nil, nil
	}
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("annotate: index stats: %w", err)
	}
	return stats, nil
}

func decodeMap(f *store.SourceFile) (*parsedmap.ParsedMap, error) {
	pm, err := parsedmap.Decode(f.ParsedMap)
	if err != nil {
		return nil, fmt.Errorf("annotate: decode map of %s: %w", f.ID, err)
	}
	return pm, nil
}
