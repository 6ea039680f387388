package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Facts is the flat attribute map a condition tree is evaluated against.
// Missing attributes must be present with a nil value rather than absent, so
// equality against null is expressible.
type Facts map[string]interface{}

// Condition is one node of a rule tree. A node is either a group (All/Any
// set) or a leaf (Attribute/Operator/Value set), never both.
type Condition struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`

	Attribute string          `json:"attribute,omitempty"`
	Operator  string          `json:"operator,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// Evaluate unmarshals a stored rule tree and evaluates it against the facts.
// Any structural or operator error aborts the whole evaluation; callers
// treat that as a non-match.
func Evaluate(tree json.RawMessage, facts Facts) (bool, error) {
	var cond Condition
	if err := json.Unmarshal(tree, &cond); err != nil {
		return false, fmt.Errorf("unmarshal rule tree: %w", err)
	}
	return evaluate(cond, facts)
}

func evaluate(cond Condition, facts Facts) (bool, error) {
	switch {
	case len(cond.All) > 0:
		for _, child := range cond.All {
			ok, err := evaluate(child, facts)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case len(cond.Any) > 0:
		for _, child := range cond.Any {
			ok, err := evaluate(child, facts)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	if cond.Attribute == "" || cond.Operator == "" {
		return false, fmt.Errorf("condition is neither a group nor a complete leaf")
	}

	actual, ok := facts[cond.Attribute]
	if !ok {
		return false, fmt.Errorf("unknown fact attribute %q", cond.Attribute)
	}

	var expected interface{}
	if len(cond.Value) > 0 {
		if err := json.Unmarshal(cond.Value, &expected); err != nil {
			return false, fmt.Errorf("parse condition value for %q: %w", cond.Attribute, err)
		}
	}

	return compare(actual, cond.Operator, expected)
}

// compare applies one operator. Numbers are compared as float64 since rule
// values arrive through JSON.
func compare(actual interface{}, op string, expected interface{}) (bool, error) {
	switch op {
	case "equals", "==":
		return equals(actual, expected), nil
	case "notEquals", "!=":
		return !equals(actual, expected), nil
	case "greaterThan", ">":
		return ordered(actual, expected, func(a, b float64) bool { return a > b })
	case "lessThan", "<":
		return ordered(actual, expected, func(a, b float64) bool { return a < b })
	case "greaterThanOrEqual", ">=":
		return ordered(actual, expected, func(a, b float64) bool { return a >= b })
	case "lessThanOrEqual", "<=":
		return ordered(actual, expected, func(a, b float64) bool { return a <= b })
	case "contains":
		a, aok := actual.(string)
		e, eok := expected.(string)
		if !aok || !eok {
			return false, fmt.Errorf("contains requires string operands, got %T and %T", actual, expected)
		}
		return strings.Contains(a, e), nil
	case "in":
		list, ok := expected.([]interface{})
		if !ok {
			return false, fmt.Errorf("in requires an array value, got %T", expected)
		}
		for _, item := range list {
			if equals(actual, item) {
				return true, nil
			}
		}
		return false, nil
	case "exists":
		return actual != nil, nil
	case "notExists":
		return actual == nil, nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

func equals(actual, expected interface{}) bool {
	if af, aok := toFloat(actual); aok {
		if ef, eok := toFloat(expected); eok {
			return af == ef
		}
		return false
	}
	return actual == expected
}

func ordered(actual, expected interface{}, cmp func(a, b float64) bool) (bool, error) {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if !aok || !eok {
		return false, fmt.Errorf("ordered comparison requires numeric operands, got %T and %T", actual, expected)
	}
	return cmp(af, ef), nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
