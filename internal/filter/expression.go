package filter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// ExpressionRule is one configurable heuristic: an expr-lang boolean
// expression over the request environment, plus the reason reported
// when it matches.
type ExpressionRule struct {
	Name   string `json:"name"`
	Expr   string `json:"expr"`
	Reason string `json:"reason"`
}

type compiledRule struct {
	name    string
	program *vm.Program
	reason  string
}

// ExpressionFilter rejects requests matching operator-supplied
// heuristics, expressed as boolean expr-lang expressions over request
// metadata (method, path, query, header count, body length). This
// generalizes spec §4.3's "example plug-in semantics" beyond the two
// named built-ins, the way the teacher's job classifier generalizes
// fixed thresholds into configurable rule expressions.
type ExpressionFilter struct {
	rules []compiledRule
}

// NewExpressionFilter compiles every rule up front; a rule that fails
// to compile is a configuration error, not a runtime one.
func NewExpressionFilter(rules []ExpressionRule) (*ExpressionFilter, error) {
	f := &ExpressionFilter{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		program, err := expr.Compile(r.Expr, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("filter: compiling rule %q: %w", r.Name, err)
		}
		f.rules = append(f.rules, compiledRule{name: r.Name, program: program, reason: r.Reason})
	}
	return f, nil
}

func (f *ExpressionFilter) FilterRequest(msg *message.HTTP) (bool, string, string) {
	env := map[string]any{
		"method":       msg.Method,
		"path":         msg.Path,
		"query":        msg.Query,
		"proto":        msg.Proto,
		"has_query":    msg.HasQuery,
		"has_body":     msg.HasBody,
		"body_length":  len(msg.Body),
		"header_count": len(msg.Header),
	}
	for _, r := range f.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			continue
		}
		if matched, _ := out.(bool); matched {
			return true, r.reason, "Expression Filter Plugin (" + r.name + ")"
		}
	}
	return false, "", ""
}
