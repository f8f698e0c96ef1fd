package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-repository-relation/bunmapper"
	"github.com/goliatone/go-repository-relation/pkg/di"
	"github.com/goliatone/go-repository-relation/relation"
)

// ChainOptions are the flags that build a relation over a table.
type ChainOptions struct {
	Table      string
	Alias      string
	PrimaryKey string
	Columns    []string
	Protected  []string

	Selects []string
	Wheres  []string
	Attrs   []string
	Joins   []string
	Groups  []string
	Havings []string
	Orders  []string
	Limit   int
	Offset  int
	Reverse bool
	Lock    string
}

func addChainFlags(cmd *cobra.Command, o *ChainOptions) {
	fs := cmd.Flags()
	fs.StringVarP(&o.Table, "table", "t", "", "table to query")
	fs.StringVar(&o.Alias, "alias", "", "table alias used to qualify columns")
	fs.StringVar(&o.PrimaryKey, "pk", "id", "primary key column")
	fs.StringSliceVar(&o.Columns, "columns", nil, "known columns; enables attribute checks")
	fs.StringSliceVar(&o.Protected, "protected", nil, "columns skipped by guarded assignment")

	fs.StringArrayVar(&o.Selects, "select", nil, "projected column (repeatable)")
	fs.StringArrayVarP(&o.Wheres, "where", "w", nil, "SQL condition (repeatable)")
	fs.StringArrayVar(&o.Attrs, "attr", nil, "equality condition as column=value (repeatable)")
	fs.StringArrayVar(&o.Joins, "join", nil, "join expression (repeatable)")
	fs.StringArrayVar(&o.Groups, "group", nil, "group expression (repeatable)")
	fs.StringArrayVar(&o.Havings, "having", nil, "having condition (repeatable)")
	fs.StringArrayVarP(&o.Orders, "order", "o", nil, "order expression (repeatable)")
	fs.IntVarP(&o.Limit, "limit", "l", -1, "row limit")
	fs.IntVar(&o.Offset, "offset", -1, "rows to skip")
	fs.BoolVar(&o.Reverse, "reverse", false, "reverse the order")
	fs.StringVar(&o.Lock, "lock", "", `row lock clause, e.g. "UPDATE"`)

	_ = cmd.MarkFlagRequired("table")
}

func (o ChainOptions) entityOptions() []relation.EntityOption {
	var opts []relation.EntityOption
	if o.Alias != "" {
		opts = append(opts, relation.WithAlias(o.Alias))
	}
	if o.PrimaryKey != "" {
		opts = append(opts, relation.WithPrimaryKey(o.PrimaryKey))
	}
	if len(o.Columns) > 0 {
		opts = append(opts, relation.WithAttributes(o.Columns...))
	}
	if len(o.Protected) > 0 {
		opts = append(opts, relation.WithProtected(o.Protected...))
	}
	return opts
}

// Build returns the relation described by the flags.
func (o ChainOptions) Build(c *di.Container) (*relation.Relation[bunmapper.Row], error) {
	rel := di.NewTableRelation(c, o.Table, o.entityOptions()...)

	if len(o.Selects) > 0 {
		rel = rel.Select(o.Selects...)
	}
	for _, j := range o.Joins {
		rel = rel.Joins(j)
	}
	for _, w := range o.Wheres {
		rel = rel.Where(w)
	}
	if len(o.Attrs) > 0 {
		attrs, err := parseAttrs(o.Attrs)
		if err != nil {
			return nil, err
		}
		rel = rel.WhereAttrs(attrs)
	}
	if len(o.Groups) > 0 {
		rel = rel.Group(o.Groups...)
	}
	for _, h := range o.Havings {
		rel = rel.Having(h)
	}
	if len(o.Orders) > 0 {
		rel = rel.Order(o.Orders...)
	}
	if o.Reverse {
		rel = rel.ReverseOrder()
	}
	if o.Limit >= 0 {
		rel = rel.Limit(o.Limit)
	}
	if o.Offset >= 0 {
		rel = rel.Offset(o.Offset)
	}
	if o.Lock != "" {
		rel = rel.LockWith(o.Lock)
	}
	return rel, nil
}

func parseAttrs(pairs []string) (map[string]any, error) {
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid attribute %q: want column=value", pair)
		}
		if v == "NULL" {
			attrs[k] = nil
			continue
		}
		attrs[k] = v
	}
	return attrs, nil
}
