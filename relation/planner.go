package relation

import (
	"regexp"
	"slices"
	"strings"

	"github.com/goliatone/go-repository-relation/query"
)

// Strategy is how associations are fetched.
type Strategy int

const (
	// StrategyPreload fetches each association with its own query after the
	// primary rows are loaded.
	StrategyPreload Strategy = iota
	// StrategyEagerJoin fetches associations inline in a single joined query.
	StrategyEagerJoin
)

func (s Strategy) String() string {
	if s == StrategyEagerJoin {
		return "eager_join"
	}
	return "preload"
}

// LoadPlan is the outcome of PlanLoad.
type LoadPlan struct {
	Strategy Strategy
	// Join lists associations loaded by the primary query.
	Join []string
	// Preload lists associations loaded afterwards, in order.
	Preload []string
}

var (
	tableRefPattern  = regexp.MustCompile(`([A-Za-z_][\w]*)\.`)
	joinNamePattern  = regexp.MustCompile(`(?i)\bjoin\s+([A-Za-z_][\w]*)`)
	quotedLitPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// PlanLoad decides how the association lists of a relation are loaded.
// EagerLoad entries always join. Includes entries join when the fragment
// references a table that is neither the entity's nor explicitly joined;
// otherwise they are preloaded after the explicit Preload entries.
func PlanLoad(frag query.Fragment, entity Entity, includes, eagerLoad, preload []string) LoadPlan {
	plan := LoadPlan{Preload: slices.Clone(preload)}

	if len(eagerLoad) > 0 || (len(includes) > 0 && referencesForeignTables(frag, entity)) {
		plan.Strategy = StrategyEagerJoin
		plan.Join = appendUnique(slices.Clone(eagerLoad), includes...)
		return plan
	}

	plan.Preload = appendUnique(plan.Preload, includes...)
	return plan
}

func referencesForeignTables(frag query.Fragment, entity Entity) bool {
	known := map[string]bool{
		strings.ToLower(entity.Table):       true,
		strings.ToLower(entity.Qualifier()): true,
	}
	joins := frag.JoinSQL()
	for _, t := range tablesIn(joins) {
		known[t] = true
	}
	for _, m := range joinNamePattern.FindAllStringSubmatch(stripQuotes(joins), -1) {
		known[strings.ToLower(m[1])] = true
	}

	text := strings.Join([]string{
		frag.SelectSQL(),
		frag.FromSQL(),
		frag.WhereSQL(),
		frag.GroupSQL(),
		frag.HavingSQL(),
		frag.OrderSQL(),
	}, " ")
	for _, t := range tablesIn(text) {
		if !known[t] {
			return true
		}
	}
	return false
}

func tablesIn(sql string) []string {
	var out []string
	for _, m := range tableRefPattern.FindAllStringSubmatch(stripQuotes(sql), -1) {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}

// stripQuotes drops string literals and identifier quoting so that
// "posts"."id" reads as posts.id and 'a.b' is ignored.
func stripQuotes(sql string) string {
	sql = quotedLitPattern.ReplaceAllString(sql, "''")
	return strings.NewReplacer(`"`, "", "`", "", "[", "", "]", "").Replace(sql)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" || slices.Contains(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}
