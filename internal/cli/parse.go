package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-repository-relation/finder"
)

// ParseResult is the outcome of parsing one finder name.
type ParseResult struct {
	Name       string   `json:"name"`
	Matched    bool     `json:"matched"`
	Kind       string   `json:"kind,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	Bang       bool     `json:"bang,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <finder>...",
		Short: "Show how dynamic finder names are interpreted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.Context(), rootOpts.formatter(cmd), finder.DefaultMatcher{}, args)
		},
	}
}

func runParse(ctx context.Context, out *OutputFormatter, matcher finder.Matcher, names []string) error {
	results := make([]ParseResult, 0, len(names))
	var b strings.Builder

	for _, name := range names {
		m, ok := matcher.Match(ctx, name)
		res := ParseResult{Name: name, Matched: ok}
		if ok {
			res.Kind = m.Kind.String()
			res.Attributes = m.Attributes
			res.Bang = m.Bang()
			fmt.Fprintf(&b, "%s\t%s\t%s\n", name, res.Kind, strings.Join(res.Attributes, ","))
		} else {
			fmt.Fprintf(&b, "%s\tno match\n", name)
		}
		results = append(results, res)
	}
	return out.Emit(results, b.String())
}
