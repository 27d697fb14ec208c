// Package query compiles map-shaped constraints into parameterized SQL
// WHERE fragments, the same suffix convention the rest of the wallet
// core uses for filtering addresses, transactions, and UTXOs.
package query

import (
	"sort"
	"strings"
)

// suffixOps maps a constraint-key suffix to its SQL operator. Order
// matters only for iteration determinism below; matching itself tries
// the longest suffix first so "__lte" isn't shadowed by "__lt".
var suffixOps = []struct {
	suffix string
	op     string
}{
	{"__not", "!="},
	{"__lte", "<="},
	{"__lt", "<"},
	{"__gt", ">"},
	{"__like", "LIKE"},
}

// CompileConstraints turns a map of constraints into a SQL fragment
// and the parameter map to bind against it. An empty map compiles to
// an empty string; a non-empty map compiles to " AND c1 = :c1 AND ...".
//
// Recognized key suffixes: __not (!=), __lt (<), __lte (<=), __gt (>),
// __like (LIKE), and __any, whose value is itself a map of
// constraints OR'd together as a parenthesized subgroup. __any's
// subkeys are promoted into the returned args map under
// "<key>_<subkey>" to avoid parameter collisions, exactly like the
// plain-key promotion performed for every other suffix.
func CompileConstraints(constraints map[string]any) (string, map[string]any) {
	return compile(constraints, " AND ", " AND ", "")
}

func compile(constraints map[string]any, joiner, prepend, prependKey string) (string, map[string]any) {
	args := make(map[string]any, len(constraints))
	if len(constraints) == 0 {
		return "", args
	}

	keys := make([]string, 0, len(constraints))
	for k := range constraints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var extras []string
	for _, key := range keys {
		val := constraints[key]

		if strings.HasSuffix(key, "__any") {
			sub, ok := val.(map[string]any)
			if !ok {
				panic("query: __any constraint value must be map[string]any")
			}
			subSQL, subArgs := compile(sub, " OR ", "", key+"_")
			extras = append(extras, "("+subSQL+")")
			for subKey, subVal := range subArgs {
				args[subKey] = subVal
			}
			continue
		}

		col, op := key, "="
		for _, so := range suffixOps {
			if strings.HasSuffix(key, so.suffix) {
				col = key[:len(key)-len(so.suffix)]
				op = so.op
				break
			}
		}

		paramName := prependKey + key
		extras = append(extras, col+" "+op+" :"+paramName)
		args[paramName] = val
	}

	if len(extras) == 0 {
		return "", args
	}
	return prepend + strings.Join(extras, joiner), args
}
