//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// KuzuStore keeps call graphs in an embedded KuzuDB: one SourceFile node per
// uploaded file, DEFINES edges to its Function nodes and CALLS edges between
// them. Only built with cgo.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

var _ Store = (*KuzuStore)(nil)

// NewKuzuStore opens a throwaway in-memory database.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore opens (or creates) the database at dbPath. Only the parent
// directory is created here; kuzu makes the leaf.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close closes the connection before the database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// Node tables first: a REL table refers to them.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS SourceFile(
		id STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Function(
		id STRING,
		file_id STRING,
		name STRING,
		ordinal INT64,
		start_line INT64,
		end_line INT64,
		recursive BOOLEAN,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINES(FROM SourceFile TO Function)`,
	`CREATE REL TABLE IF NOT EXISTS CALLS(FROM Function TO Function, call_sites INT64)`,
}

// InitSchema is idempotent.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, ddl := range ddlStatements {
		if err := s.exec(ddl, nil); err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
	}
	return nil
}

// IndexFile replaces the graph stored for fileID.
func (s *KuzuStore) IndexFile(ctx context.Context, fileID string, pm *parsedmap.ParsedMap) error {
	if err := s.RemoveFile(ctx, fileID); err != nil {
		return err
	}
	nodes, edges := fileGraph(fileID, pm)

	if err := s.exec("CREATE (f:SourceFile {id: $id})", map[string]any{"id": fileID}); err != nil {
		return err
	}
	for i, fn := range nodes {
		err := s.exec(
			`CREATE (f:Function {
				id: $id,
				file_id: $fid,
				name: $name,
				ordinal: $ord,
				start_line: $sl,
				end_line: $el,
				recursive: $rec
			})`,
			map[string]any{
				"id":   functionID(fileID, fn.Name),
				"fid":  fileID,
				"name": fn.Name,
				"ord":  int64(i),
				"sl":   int64(fn.StartLine),
				"el":   int64(fn.EndLine),
				"rec":  fn.Recursive,
			},
		)
		if err != nil {
			return err
		}
		err = s.exec(
			`MATCH (a:SourceFile {id: $src}), (b:Function {id: $dst})
			 CREATE (a)-[:DEFINES]->(b)`,
			map[string]any{"src": fileID, "dst": functionID(fileID, fn.Name)},
		)
		if err != nil {
			return err
		}
	}
	for _, e := range edges {
		err := s.exec(
			`MATCH (a:Function {id: $src}), (b:Function {id: $dst})
			 CREATE (a)-[:CALLS {call_sites: $sites}]->(b)`,
			map[string]any{
				"src":   functionID(fileID, e.Caller),
				"dst":   functionID(fileID, e.Callee),
				"sites": int64(e.Count),
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveFile deletes a file node and its functions along with their edges.
func (s *KuzuStore) RemoveFile(_ context.Context, fileID string) error {
	params := map[string]any{"fid": fileID}
	if err := s.exec("MATCH (f:Function) WHERE f.file_id = $fid DETACH DELETE f", params); err != nil {
		return err
	}
	return s.exec("MATCH (f:SourceFile) WHERE f.id = $fid DETACH DELETE f", params)
}

// GetFunction retrieves a Function node, or returns nil if not found.
func (s *KuzuStore) GetFunction(_ context.Context, fileID, name string) (*FunctionNode, error) {
	rows, err := s.query(
		`MATCH (f:Function {id: $id})
		 RETURN f.file_id, f.name, f.start_line, f.end_line, f.recursive`,
		map[string]any{"id": functionID(fileID, name)},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToFunction(rows[0]), nil
}

// Functions returns a file's functions in definition order.
func (s *KuzuStore) Functions(_ context.Context, fileID string) ([]FunctionNode, error) {
	rows, err := s.query(
		`MATCH (f:Function) WHERE f.file_id = $fid
		 RETURN f.file_id, f.name, f.start_line, f.end_line, f.recursive
		 ORDER BY f.ordinal`,
		map[string]any{"fid": fileID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]FunctionNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToFunction(r))
	}
	return out, nil
}

// Edges returns a file's CALLS edges ordered by caller then callee.
func (s *KuzuStore) Edges(_ context.Context, fileID string) ([]CallEdge, error) {
	rows, err := s.query(
		`MATCH (a:Function)-[r:CALLS]->(b:Function) WHERE a.file_id = $fid
		 RETURN a.name, b.name, r.call_sites
		 ORDER BY a.name, b.name`,
		map[string]any{"fid": fileID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]CallEdge, 0, len(rows))
	for _, r := range rows {
		out = append(out, CallEdge{
			FileID: fileID,
			Caller: toString(r[0]),
			Callee: toString(r[1]),
			Count:  toInt(r[2]),
		})
	}
	return out, nil
}

// GetChains performs a BFS over CALLS edges starting from the named function.
func (s *KuzuStore) GetChains(_ context.Context, fileID, name string, dir Direction, maxDepth int) ([]CallChain, error) {
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	var cypher string
	switch dir {
	case DirectionCallees:
		cypher = "MATCH (a:Function {id: $id})-[:CALLS]->(b:Function) RETURN b.name"
	default:
		cypher = "MATCH (a:Function)-[:CALLS]->(b:Function {id: $id}) RETURN a.name"
	}
	return walkChains(name, maxDepth, func(tip string) ([]string, error) {
		rows, err := s.query(cypher, map[string]any{"id": functionID(fileID, tip)})
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(rows))
		for _, r := range rows {
			out = append(out, toString(r[0]))
		}
		return uniqueSorted(out), nil
	})
}

// Stats returns counts of files, functions and CALLS edges.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	files, err := s.count("MATCH (n:SourceFile) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	functions, err := s.count("MATCH (n:Function) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	edges, err := s.count("MATCH ()-[r:CALLS]->() RETURN count(r)")
	if err != nil {
		return nil, err
	}
	return &GraphStats{
		FileCount:     files,
		FunctionCount: functions,
		EdgeCount:     edges,
	}, nil
}

// exec is query for statements whose rows are not needed.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	_, err := s.query(cypher, params)
	return err
}

// query prepares cypher only when it has parameters. Rows come back in
// column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var (
		res *kuzu.QueryResult
		err error
	)
	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// count runs a single-value count query.
func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// functionID produces the primary key of a Function node: "fileID:name".
func functionID(fileID, name string) string {
	return fileID + ":" + name
}

// rowToFunction converts a 5-column result row into a FunctionNode.
// Column order: file_id, name, start_line, end_line, recursive.
func rowToFunction(r []any) *FunctionNode {
	return &FunctionNode{
		FileID:    toString(r[0]),
		Name:      toString(r[1]),
		StartLine: toInt(r[2]),
		EndLine:   toInt(r[3]),
		Recursive: toBool(r[4]),
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// INT64 columns arrive as int64; the other cases cover count() on older
// kuzu builds.
func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}
