package query

import "strings"

// LockMode is the tri-state locking setting of a fragment.
type LockMode int

const (
	LockUnset LockMode = iota
	LockEnabled
	LockDisabled
)

// DefaultLockClause is rendered when locking is enabled without a raw clause.
const DefaultLockClause = "UPDATE"

// Lock describes row locking. Clause is only meaningful when Mode is LockEnabled.
type Lock struct {
	Mode   LockMode
	Clause string
}

// Unset leaves locking to the store default.
func Unset() Lock { return Lock{Mode: LockUnset} }

// Enabled turns locking on, optionally with a raw clause such as "SHARE".
func Enabled(clause ...string) Lock {
	l := Lock{Mode: LockEnabled}
	if len(clause) > 0 {
		l.Clause = strings.TrimSpace(clause[0])
	}
	return l
}

// Disabled turns locking off explicitly.
func Disabled() Lock { return Lock{Mode: LockDisabled} }

// SQL returns the clause rendered after FOR, or "" when locking is not enabled.
func (l Lock) SQL() string {
	if l.Mode != LockEnabled {
		return ""
	}
	if l.Clause == "" {
		return DefaultLockClause
	}
	return l.Clause
}
