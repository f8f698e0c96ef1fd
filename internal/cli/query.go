package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-repository-relation/bunmapper"
	"github.com/goliatone/go-repository-relation/pkg/di"
	"github.com/goliatone/go-repository-relation/relation"
)

// withRelation opens the container, builds the chain and hands both to fn.
func withRelation(cmd *cobra.Command, rootOpts *RootOptions, chain *ChainOptions, fn func(*di.Container, *relation.Relation[bunmapper.Row]) error) error {
	c, err := rootOpts.container(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer c.Close()

	rel, err := chain.Build(c)
	if err != nil {
		return err
	}
	return fn(c, rel)
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	chain := &ChainOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the SQL a relation chain would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelation(cmd, rootOpts, chain, func(_ *di.Container, rel *relation.Relation[bunmapper.Row]) error {
				sql := rel.ToSQL()
				return rootOpts.formatter(cmd).Emit(map[string]string{"sql": sql}, sql+"\n")
			})
		},
	}
	addChainFlags(cmd, chain)
	return cmd
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	chain := &ChainOptions{}
	var count, exists, first, last bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a relation chain and print the rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelation(cmd, rootOpts, chain, func(c *di.Container, rel *relation.Relation[bunmapper.Row]) error {
				ctx := cmd.Context()
				out := rootOpts.formatter(cmd)

				switch {
				case count:
					n, err := rel.Count(ctx)
					if err != nil {
						return err
					}
					return out.Emit(map[string]int{"count": n}, strconv.Itoa(n)+"\n")
				case exists:
					ok, err := rel.Exists(ctx)
					if err != nil {
						return err
					}
					return out.Emit(map[string]bool{"exists": ok}, strconv.FormatBool(ok)+"\n")
				case first, last:
					take := rel.First
					if last {
						take = rel.Last
					}
					row, ok, err := take(ctx)
					if err != nil {
						return err
					}
					if !ok {
						return out.Rows(nil)
					}
					return out.Rows([]bunmapper.Row{row})
				}

				rows, err := rel.Load(ctx)
				if err != nil {
					return err
				}
				if err := out.Rows(rows); err != nil {
					return err
				}
				if rootOpts.Verbose {
					fmt.Fprintln(cmd.ErrOrStderr(), c.QueryStats())
				}
				return nil
			})
		},
	}
	addChainFlags(cmd, chain)
	cmd.Flags().BoolVar(&count, "count", false, "print the row count")
	cmd.Flags().BoolVar(&exists, "exists", false, "print whether any row matches")
	cmd.Flags().BoolVar(&first, "first", false, "print the first row")
	cmd.Flags().BoolVar(&last, "last", false, "print the last row")
	cmd.MarkFlagsMutuallyExclusive("count", "exists", "first", "last")
	return cmd
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	chain := &ChainOptions{}
	cmd := &cobra.Command{
		Use:   "find <finder> [value]...",
		Short: "Run a dynamic finder such as find_by_title or find_or_create_by_email",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelation(cmd, rootOpts, chain, func(_ *di.Container, rel *relation.Relation[bunmapper.Row]) error {
				values := make([]any, 0, len(args)-1)
				for _, v := range args[1:] {
					values = append(values, v)
				}
				res, err := rel.Dispatch(cmd.Context(), args[0], values...)
				if err != nil {
					return err
				}
				return emitFinderResult(cmd.Context(), rootOpts.formatter(cmd), res)
			})
		},
	}
	addChainFlags(cmd, chain)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	chain := &ChainOptions{}
	var set string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update every row matched by a relation chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelation(cmd, rootOpts, chain, func(_ *di.Container, rel *relation.Relation[bunmapper.Row]) error {
				n, err := rel.UpdateAll(cmd.Context(), set)
				if err != nil {
					return err
				}
				return emitAffected(rootOpts.formatter(cmd), n)
			})
		},
	}
	addChainFlags(cmd, chain)
	cmd.Flags().StringVar(&set, "set", "", `assignments, e.g. "views = 0"`)
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	chain := &ChainOptions{}
	cmd := &cobra.Command{
		Use:   "delete [id]...",
		Short: "Delete rows by id, or every row matched by a relation chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRelation(cmd, rootOpts, chain, func(_ *di.Container, rel *relation.Relation[bunmapper.Row]) error {
				var (
					n   int64
					err error
				)
				if len(args) > 0 {
					n, err = rel.Delete(cmd.Context(), relation.IDs(args...)...)
				} else {
					n, err = rel.DeleteAll(cmd.Context())
				}
				if err != nil {
					return err
				}
				return emitAffected(rootOpts.formatter(cmd), n)
			})
		},
	}
	addChainFlags(cmd, chain)
	return cmd
}

func emitAffected(out *OutputFormatter, n int64) error {
	return out.Emit(map[string]int64{"affected": n}, strconv.FormatInt(n, 10)+"\n")
}
