package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// MapExport wraps a parsed map with the source it was produced from.
type MapExport struct {
	Source     string               `json:"source"`
	ExportedAt string               `json:"exportedAt"`
	Map        *parsedmap.ParsedMap `json:"map,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// NewMapExport builds an export document stamped with the current UTC time.
func NewMapExport(source string, pm *parsedmap.ParsedMap, err error) MapExport {
	e := MapExport{
		Source:     source,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Map:        pm,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: write json: %w", err)
	}
	return nil
}
