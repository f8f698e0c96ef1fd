package finder

import (
	"regexp"
	"slices"
	"strings"

	"github.com/goliatone/go-repository-relation/internal/naming"
)

// Kind is the intent parsed from a finder name.
type Kind int

const (
	KindNone Kind = iota
	KindFirst
	KindLast
	KindAll
	KindFirstOrRaise
	KindScope
	KindFindOrInitialize
	KindFindOrCreate
)

var kindNames = map[Kind]string{
	KindNone:             "none",
	KindFirst:            "find_by",
	KindLast:             "find_last_by",
	KindAll:              "find_all_by",
	KindFirstOrRaise:     "find_by!",
	KindScope:            "scoped_by",
	KindFindOrInitialize: "find_or_initialize_by",
	KindFindOrCreate:     "find_or_create_by",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Match is a parsed finder request: what to do and which attributes to
// constrain, in argument order.
type Match struct {
	Name       string
	Kind       Kind
	Attributes []string
}

// NewMatch builds a request without going through name parsing.
func NewMatch(kind Kind, attributes ...string) Match {
	attrs := slices.Clone(attributes)
	return Match{
		Name:       kind.String() + "_" + strings.Join(attrs, "_and_"),
		Kind:       kind,
		Attributes: attrs,
	}
}

// IsFinder reports whether the match reads records.
func (m Match) IsFinder() bool {
	switch m.Kind {
	case KindFirst, KindLast, KindAll, KindFirstOrRaise:
		return true
	}
	return false
}

// IsScope reports whether the match only narrows the relation.
func (m Match) IsScope() bool { return m.Kind == KindScope }

// IsInstantiator reports whether the match may build a new record.
func (m Match) IsInstantiator() bool {
	return m.Kind == KindFindOrInitialize || m.Kind == KindFindOrCreate
}

// Bang reports whether a miss must fail instead of returning nothing.
func (m Match) Bang() bool { return m.Kind == KindFirstOrRaise }

func (m Match) clone() Match {
	m.Attributes = slices.Clone(m.Attributes)
	return m
}

var (
	finderPattern       = regexp.MustCompile(`^find_(all_|last_)?by_([_a-z]\w*)$`)
	bangPattern         = regexp.MustCompile(`^find_by_([_a-z]\w*)!$`)
	instantiatorPattern = regexp.MustCompile(`^find_or_(initialize|create)_by_([_a-z]\w*)$`)
	scopePattern        = regexp.MustCompile(`^scoped_by_([_a-z]\w*)$`)
)

// Parse reads a finder name such as "find_by_name_and_email",
// "find_by_email!", "find_or_create_by_name" or their Go spellings
// ("FindByNameAndEmail", "MustFindByEmail", "FindOrCreateByName").
// It reports false when the name follows none of the finder forms.
func Parse(name string) (Match, bool) {
	normalized := normalize(name)

	var kind Kind
	var names string

	switch {
	case bangPattern.MatchString(normalized):
		kind = KindFirstOrRaise
		names = bangPattern.FindStringSubmatch(normalized)[1]
	case finderPattern.MatchString(normalized):
		sm := finderPattern.FindStringSubmatch(normalized)
		switch sm[1] {
		case "all_":
			kind = KindAll
		case "last_":
			kind = KindLast
		default:
			kind = KindFirst
		}
		names = sm[2]
	case instantiatorPattern.MatchString(normalized):
		sm := instantiatorPattern.FindStringSubmatch(normalized)
		kind = KindFindOrInitialize
		if sm[1] == "create" {
			kind = KindFindOrCreate
		}
		names = sm[2]
	case scopePattern.MatchString(normalized):
		kind = KindScope
		names = scopePattern.FindStringSubmatch(normalized)[1]
	default:
		return Match{}, false
	}

	attrs := strings.Split(names, "_and_")
	for _, a := range attrs {
		if strings.Trim(a, "_") == "" {
			return Match{}, false
		}
	}

	return Match{Name: name, Kind: kind, Attributes: attrs}, true
}

// normalize turns Go spelled finder names into their snake form.
// "MustFindByEmail" becomes "find_by_email!".
func normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || !isUpper(name[0]) {
		return name
	}
	snake := naming.Snake(name)
	if rest, ok := strings.CutPrefix(snake, "must_"); ok {
		return rest + "!"
	}
	return snake
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
