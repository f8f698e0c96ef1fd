package query

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Interpolate replaces each ? placeholder in sql with its argument. The
// output is meant for diagnostics only and is never sent to a store.
func Interpolate(sql string, args ...any) string {
	if len(args) == 0 {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8*len(args))
	next := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c != '?' || next >= len(args) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(literal(args[next]))
		next++
	}
	return b.String()
}

func literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case []byte:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case time.Time:
		return "'" + val.UTC().Format(time.RFC3339Nano) + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case fmt.Stringer:
		return val.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = literal(rv.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL"
		}
		return literal(rv.Elem().Interface())
	}
	return fmt.Sprintf("%v", v)
}
