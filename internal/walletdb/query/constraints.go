package query

import "fmt"

// Constraints is a fluent, typed builder over the same suffix
// convention CompileConstraints implements, so call sites don't
// construct map[string]any literals with stringly-typed suffix keys
// by hand. The raw map form stays available (and is what __any groups
// compile to internally) for exact parity tests against the original
// suffix-key algorithm.
type Constraints struct {
	m map[string]any
}

// New starts an empty constraint set.
func New() *Constraints {
	return &Constraints{m: make(map[string]any)}
}

// Eq adds "column = value".
func (c *Constraints) Eq(column string, value any) *Constraints {
	c.m[column] = value
	return c
}

// Not adds "column != value".
func (c *Constraints) Not(column string, value any) *Constraints {
	c.m[column+"__not"] = value
	return c
}

// Lt adds "column < value".
func (c *Constraints) Lt(column string, value any) *Constraints {
	c.m[column+"__lt"] = value
	return c
}

// Lte adds "column <= value".
func (c *Constraints) Lte(column string, value any) *Constraints {
	c.m[column+"__lte"] = value
	return c
}

// Gt adds "column > value".
func (c *Constraints) Gt(column string, value any) *Constraints {
	c.m[column+"__gt"] = value
	return c
}

// Like adds "column LIKE value".
func (c *Constraints) Like(column string, value any) *Constraints {
	c.m[column+"__like"] = value
	return c
}

// Any adds an OR'd subgroup built from another Constraints. name must
// be unique among the receiver's keys; it is only used to namespace
// the compiled parameters and never appears as a column.
func (c *Constraints) Any(name string, sub *Constraints) *Constraints {
	c.m[name+"__any"] = sub.m
	return c
}

// Map returns the raw map[string]any this builder has accumulated,
// suitable for passing to CompileConstraints directly.
func (c *Constraints) Map() map[string]any {
	return c.m
}

// Compile is a convenience wrapper around CompileConstraints(c.Map()).
func (c *Constraints) Compile() (string, map[string]any) {
	return CompileConstraints(c.m)
}

func (c *Constraints) String() string {
	sql, _ := c.Compile()
	return fmt.Sprintf("Constraints(%s)", sql)
}
