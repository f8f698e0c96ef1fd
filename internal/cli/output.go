package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goliatone/go-repository-relation/bunmapper"
	"github.com/goliatone/go-repository-relation/finder"
	"github.com/goliatone/go-repository-relation/relation"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Emit writes v as indented JSON, or text as given.
func (f *OutputFormatter) Emit(v any, text string) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := io.WriteString(f.Writer, text)
	return err
}

// Rows writes one line per row with columns in name order.
func (f *OutputFormatter) Rows(rows []bunmapper.Row) error {
	if rows == nil {
		rows = []bunmapper.Row{}
	}
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(formatRow(row))
		b.WriteByte('\n')
	}
	return f.Emit(rows, b.String())
}

func formatRow(row bunmapper.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, row[k])
	}
	return strings.Join(parts, "\t")
}

// FinderOutput is the JSON shape of a dynamic finder result.
type FinderOutput struct {
	Finder    string          `json:"finder"`
	Kind      string          `json:"kind"`
	Found     bool            `json:"found"`
	Persisted bool            `json:"persisted,omitempty"`
	Rows      []bunmapper.Row `json:"rows"`
	SQL       string          `json:"sql,omitempty"`
}

func emitFinderResult(ctx context.Context, out *OutputFormatter, res relation.FinderResult[bunmapper.Row]) error {
	o := FinderOutput{
		Finder:    res.Match.Name,
		Kind:      res.Match.Kind.String(),
		Found:     res.Found,
		Persisted: res.Persisted,
		Rows:      []bunmapper.Row{},
	}

	switch {
	case res.Match.IsScope():
		o.SQL = res.Relation.ToSQL()
		rows, err := res.Relation.Load(ctx)
		if err != nil {
			return err
		}
		o.Rows, o.Found = rows, len(rows) > 0
	case res.Match.Kind == finder.KindAll:
		o.Rows, o.Found = res.Records, len(res.Records) > 0
	case res.Found || res.Match.IsInstantiator():
		o.Rows = []bunmapper.Row{res.Record}
	}

	var b strings.Builder
	if o.SQL != "" {
		b.WriteString(o.SQL + "\n")
	}
	for _, row := range o.Rows {
		b.WriteString(formatRow(row) + "\n")
	}
	if len(o.Rows) == 0 {
		b.WriteString("no rows\n")
	}
	return out.Emit(o, b.String())
}
