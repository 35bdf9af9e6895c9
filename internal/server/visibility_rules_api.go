package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/invigilo/invigilo/internal/routing"
	"github.com/invigilo/invigilo/modules/proctoring/services"
)

type visibilityRule struct {
	DependentField string `json:"dependent_field"`
	Condition      string `json:"condition"`
	Value          string `json:"value"`
}

type visibilityRulesResponse struct {
	Rules map[string][]visibilityRule `json:"rules"`
}

func handleVisibilityRulesAPI(w http.ResponseWriter, r *http.Request, resolver *services.SettingsResolver) {
	rules := map[string][]visibilityRule{}
	for field, rs := range resolver.HideRules() {
		out := make([]visibilityRule, 0, len(rs))
		for _, rule := range rs {
			out = append(out, visibilityRule{
				DependentField: rule.DependentField,
				Condition:      rule.Condition,
				Value:          rule.DependentValue,
			})
		}
		rules[field] = out
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(visibilityRulesResponse{Rules: rules})
}

type visibilityEvaluateRequest struct {
	Values map[string]string `json:"values"`
}

type visibilityEvaluateResponse struct {
	Hidden  []string `json:"hidden"`
	Visible []string `json:"visible"`
}

var newVisibilityCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("fields", cel.MapType(cel.StringType, cel.StringType)))
}

var visibilityProgramCache sync.Map

// handleVisibilityRulesEvaluateAPI applies the generated hide rules to a
// submitted field-value map. Each rule compiles to a CEL predicate over
// the values; a field is hidden when any of its rules evaluates true.
func handleVisibilityRulesEvaluateAPI(w http.ResponseWriter, r *http.Request, resolver *services.SettingsResolver) {
	var req visibilityEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	// Indexing a missing key is an evaluation error in CEL, so every
	// dependent field gets an explicit value first.
	values := map[string]string{}
	for k, v := range req.Values {
		values[k] = v
	}
	hideRules := resolver.HideRules()
	for _, rules := range hideRules {
		for _, rule := range rules {
			if _, ok := values[rule.DependentField]; !ok {
				values[rule.DependentField] = ""
			}
		}
	}

	var hidden, visible []string
	for field, rules := range hideRules {
		fieldHidden := false
		for _, rule := range rules {
			expr, err := visibilityRuleExpr(rule)
			if err != nil {
				routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
				return
			}
			match, err := evalVisibilityExpr(expr, values)
			if err != nil {
				routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
				return
			}
			if match {
				fieldHidden = true
				break
			}
		}
		if fieldHidden {
			hidden = append(hidden, field)
		} else {
			visible = append(visible, field)
		}
	}
	sort.Strings(hidden)
	sort.Strings(visible)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(visibilityEvaluateResponse{Hidden: hidden, Visible: visible})
}

func visibilityRuleExpr(rule services.HideRule) (string, error) {
	key := fmt.Sprintf("fields[%q]", rule.DependentField)
	switch rule.Condition {
	case services.HideConditionEq:
		return fmt.Sprintf("%s == %q", key, rule.DependentValue), nil
	case services.HideConditionNeq:
		return fmt.Sprintf("%s != %q", key, rule.DependentValue), nil
	}
	return "", errors.New("unknown hide rule condition")
}

func evalVisibilityExpr(expr string, values map[string]string) (bool, error) {
	program, err := loadOrCompileVisibilityProgram(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"fields": values})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("expression output type mismatch")
	}
	return v, nil
}

func loadOrCompileVisibilityProgram(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := visibilityProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newVisibilityCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	visibilityProgramCache.Store(expr, program)
	return program, nil
}
