// internal/repository/filter.go
package repository

import (
	"strconv"
	"strings"
)

// Cond is one parameterized SQL predicate. Values never touch the SQL text;
// placeholders are written as "?" and rewritten to $n when the filter
// renders. Optional scoping is built by composing conds, never by string
// interpolation.
type Cond struct {
	expr string
	args []any
}

// Eq matches column = value.
func Eq(column string, value any) Cond {
	return Cond{expr: column + " = ?", args: []any{value}}
}

// Lte matches column <= value.
func Lte(column string, value any) Cond {
	return Cond{expr: column + " <= ?", args: []any{value}}
}

// Or combines conds so that any one of them matching is enough.
func Or(conds ...Cond) Cond {
	return combine(conds, " OR ")
}

// And combines conds so that all of them must match.
func And(conds ...Cond) Cond {
	return combine(conds, " AND ")
}

func combine(conds []Cond, sep string) Cond {
	if len(conds) == 1 {
		return conds[0]
	}
	exprs := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		exprs = append(exprs, c.expr)
		args = append(args, c.args...)
	}
	return Cond{expr: "(" + strings.Join(exprs, sep) + ")", args: args}
}

// Filter is an optional set of conds joined with AND.
type Filter struct {
	conds []Cond
}

func NewFilter() *Filter {
	return &Filter{}
}

func (f *Filter) Add(c Cond) *Filter {
	f.conds = append(f.conds, c)
	return f
}

func (f *Filter) Empty() bool {
	return f == nil || len(f.conds) == 0
}

// SQL renders the filter as a WHERE clause with $n placeholders starting at
// start, plus the argument slice in placeholder order. An empty filter
// renders to an empty clause.
func (f *Filter) SQL(start int) (string, []any) {
	if f.Empty() {
		return "", nil
	}

	joined := And(f.conds...)
	var b strings.Builder
	b.WriteString(" WHERE ")
	n := start
	for _, r := range joined.expr {
		if r == '?' {
			b.WriteString("$" + strconv.Itoa(n))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), joined.args
}
