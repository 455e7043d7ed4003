// Package policy evaluates CEL rules over lookup requests. Rules run in
// order, first match wins, and a configurable default applies when nothing
// matches.
package policy

import (
	"fmt"

	"github.com/VikingOwl91/capfs/internal/config"
	"github.com/google/cel-go/cel"
)

// Effect is a policy decision.
type Effect int

const (
	Deny Effect = iota
	Allow
)

func (e Effect) String() string {
	if e == Allow {
		return "allow"
	}
	return "deny"
}

// LookupContext is the evaluation input for one lookup request.
type LookupContext struct {
	Path    string
	Rights  []string
	Sandbox bool
}

type compiledRule struct {
	name    string
	effect  Effect
	program cel.Program
}

// Engine holds compiled rules.
type Engine struct {
	defaultEffect Effect
	rules         []compiledRule
}

// New compiles the configured rules. An invalid expression fails
// construction with the offending rule's name in the error.
func New(cfg config.PolicyConfig) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("rights", cel.ListType(cel.StringType)),
		cel.Variable("sandbox", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	e := &Engine{}
	if cfg.Default == "allow" {
		e.defaultEffect = Allow
	}

	for _, rule := range cfg.Rules {
		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: invalid CEL expression: %w", rule.Name, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: building program: %w", rule.Name, err)
		}
		effect := Deny
		if rule.Effect == "allow" {
			effect = Allow
		}
		e.rules = append(e.rules, compiledRule{name: rule.Name, effect: effect, program: prg})
	}

	return e, nil
}

// Evaluate returns the decision and the name of the rule that made it, or
// "default:<effect>" when no rule matched. A rule that errors at runtime is
// treated as not matching.
func (e *Engine) Evaluate(ctx LookupContext) (Effect, string) {
	rights := ctx.Rights
	if rights == nil {
		rights = []string{}
	}
	input := map[string]any{
		"path":    ctx.Path,
		"rights":  rights,
		"sandbox": ctx.Sandbox,
	}
	for _, r := range e.rules {
		out, _, err := r.program.Eval(input)
		if err != nil {
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			return r.effect, r.name
		}
	}
	return e.defaultEffect, "default:" + e.defaultEffect.String()
}
