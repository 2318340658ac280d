package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"

	"github.com/DrSkyle/sbh/pkg/core"
	"github.com/DrSkyle/sbh/pkg/engine/scanner"
)

// RuleVerdict is the outcome of evaluating the dynamic rules for a candidate.
type RuleVerdict int

const (
	VerdictNone RuleVerdict = iota
	// VerdictBlock forces the candidate to Keep regardless of score.
	VerdictBlock
	// VerdictApproveHint marks the candidate as operator-preferred; it does
	// not bypass vetoes or the score floor.
	VerdictApproveHint
)

// DynamicRule is one user-defined policy rule over candidate attributes.
type DynamicRule struct {
	ID        string `json:"id"`
	Condition string `json:"condition"` // CEL: "category == 'node_modules' && size_bytes > 1073741824"
	Action    string `json:"action"`    // "block" or "approve_hint"
	Priority  int    `json:"priority"`  // higher wins
	// Categories narrows the rule to specific artifact categories; empty
	// means all.
	Categories []string `json:"categories,omitempty"`
}

// RuleEngine compiles and evaluates dynamic rules. Compilation happens once;
// evaluation is pure.
type RuleEngine struct {
	env      *cel.Env
	programs map[string]cel.Program
	rules    map[string]DynamicRule
	index    map[string][]string // category -> rule ids; "*" for global
}

// NewRuleEngine initializes the CEL environment with the candidate schema.
func NewRuleEngine() (*RuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("path", decls.String),
			decls.NewVar("category", decls.String),
			decls.NewVar("size_bytes", decls.Int),
			decls.NewVar("age_hours", decls.Double),
			decls.NewVar("score", decls.Double),
			decls.NewVar("posterior", decls.Double),
			decls.NewVar("confidence", decls.Double),
		),
	)
	if err != nil {
		return nil, core.Runtimef("failed to create CEL env: %v", err)
	}
	return &RuleEngine{
		env:      env,
		programs: make(map[string]cel.Program),
		rules:    make(map[string]DynamicRule),
		index:    make(map[string][]string),
	}, nil
}

// Compile prepares rules for execution. A rule that fails to compile rejects
// the whole set: half-loaded policy is worse than none.
func (e *RuleEngine) Compile(rules []DynamicRule) error {
	for _, r := range rules {
		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return core.InvalidConfig(fmt.Sprintf("rule %s: %v", r.ID, issues.Err()))
		}
		prg, err := e.env.Program(ast)
		if err != nil {
			return core.InvalidConfig(fmt.Sprintf("rule %s program: %v", r.ID, err))
		}
		e.programs[r.ID] = prg
		e.rules[r.ID] = r

		if len(r.Categories) == 0 {
			e.index["*"] = append(e.index["*"], r.ID)
			continue
		}
		for _, cat := range r.Categories {
			e.index[cat] = append(e.index[cat], r.ID)
		}
	}
	return nil
}

// Evaluate returns the verdict of the highest-priority matching rule.
func (e *RuleEngine) Evaluate(s *scanner.CandidacyScore) (RuleVerdict, error) {
	category := string(s.Classification.Category)
	candidates := make([]string, 0, len(e.index[category])+len(e.index["*"]))
	candidates = append(candidates, e.index[category]...)
	candidates = append(candidates, e.index["*"]...)
	if len(candidates) == 0 {
		return VerdictNone, nil
	}

	vars := map[string]any{
		"path":       s.Path,
		"category":   category,
		"size_bytes": int64(s.SizeBytes),
		"age_hours":  s.Age.Hours(),
		"score":      s.TotalScore,
		"posterior":  s.Decision.PosteriorAbandoned,
		"confidence": s.Classification.CombinedConfidence,
	}

	var matches []DynamicRule
	evaluated := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		if evaluated[id] {
			continue
		}
		evaluated[id] = true
		prg, ok := e.programs[id]
		if !ok {
			continue
		}
		out, _, err := prg.Eval(vars)
		if err != nil {
			return VerdictNone, core.Runtimef("rule %s evaluation: %v", id, err)
		}
		if matched, ok := out.Value().(bool); ok && matched {
			matches = append(matches, e.rules[id])
		}
	}
	if len(matches) == 0 {
		return VerdictNone, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].ID < matches[j].ID
	})

	switch matches[0].Action {
	case "block":
		return VerdictBlock, nil
	case "approve_hint":
		return VerdictApproveHint, nil
	default:
		return VerdictNone, nil
	}
}

// LoadRulesFile reads a JSON rule document and compiles it.
func LoadRulesFile(path string) (*RuleEngine, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Io(path, err)
	}
	var rules []DynamicRule
	if err := json.Unmarshal(body, &rules); err != nil {
		return nil, core.ConfigParse("rules", err.Error())
	}
	engine, err := NewRuleEngine()
	if err != nil {
		return nil, err
	}
	if err := engine.Compile(rules); err != nil {
		return nil, err
	}
	return engine, nil
}
