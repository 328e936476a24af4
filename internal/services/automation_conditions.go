package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	ErrUnknownOperator  = errors.New("automation: unknown condition operator")
	ErrInvalidCondition = errors.New("automation: invalid condition")
)

// Condition operators accepted in stored rules.
const (
	OpEquals      = "equals"
	OpGreaterThan = "greater_than"
	OpContains    = "contains"
)

// ConditionSpec is the stored form of a condition.
type ConditionSpec struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// Predicate is one compiled condition. The set of implementations is closed
// to this package.
type Predicate interface {
	Match(payload map[string]interface{}) bool
	predicate()
}

// Equals matches when the field holds exactly Value. Numbers compare by value
// whatever their Go type; no other coercion happens.
type Equals struct {
	Field string
	Value interface{}
}

// GreaterThan matches when the field is a number strictly above Value.
type GreaterThan struct {
	Field string
	Value float64
}

// Contains matches a substring of a string field or a member of a list field.
type Contains struct {
	Field string
	Value interface{}
}

func (Equals) predicate()      {}
func (GreaterThan) predicate() {}
func (Contains) predicate()    {}

func (p Equals) Match(payload map[string]interface{}) bool {
	actual, ok := lookupField(payload, p.Field)
	if !ok {
		return false
	}
	return strictEqual(actual, p.Value)
}

func (p GreaterThan) Match(payload map[string]interface{}) bool {
	actual, ok := lookupField(payload, p.Field)
	if !ok {
		return false
	}
	n, ok := toFloat(actual)
	if !ok {
		return false
	}
	return n > p.Value
}

func (p Contains) Match(payload map[string]interface{}) bool {
	actual, ok := lookupField(payload, p.Field)
	if !ok || actual == nil {
		return false
	}
	switch v := actual.(type) {
	case string:
		needle, ok := p.Value.(string)
		return ok && strings.Contains(v, needle)
	case []interface{}:
		for _, item := range v {
			if strictEqual(item, p.Value) {
				return true
			}
		}
		return false
	case []string:
		needle, ok := p.Value.(string)
		if !ok {
			return false
		}
		for _, item := range v {
			if item == needle {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Conditions is a compiled AND-list. An empty list matches everything.
type Conditions []Predicate

func (cs Conditions) Match(payload map[string]interface{}) bool {
	for _, c := range cs {
		if !c.Match(payload) {
			return false
		}
	}
	return true
}

// CompileCondition turns a stored condition into a predicate.
func CompileCondition(spec ConditionSpec) (Predicate, error) {
	if strings.TrimSpace(spec.Field) == "" {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidCondition)
	}
	switch spec.Operator {
	case OpEquals:
		return Equals{Field: spec.Field, Value: normalizeNumber(spec.Value)}, nil
	case OpGreaterThan:
		n, ok := toFloat(spec.Value)
		if !ok {
			return nil, fmt.Errorf("%w: greater_than on %q needs a numeric value", ErrInvalidCondition, spec.Field)
		}
		return GreaterThan{Field: spec.Field, Value: n}, nil
	case OpContains:
		return Contains{Field: spec.Field, Value: normalizeNumber(spec.Value)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, spec.Operator)
	}
}

// CompileConditions compiles every spec and fails on the first bad one.
func CompileConditions(specs []ConditionSpec) (Conditions, error) {
	out := make(Conditions, 0, len(specs))
	for i, spec := range specs {
		p, err := CompileCondition(spec)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseConditions decodes a stored JSON column and compiles it.
func ParseConditions(raw []byte) (Conditions, error) {
	specs, err := decodeConditionSpecs(raw)
	if err != nil {
		return nil, err
	}
	return CompileConditions(specs)
}

func decodeConditionSpecs(raw []byte) ([]ConditionSpec, error) {
	var specs []ConditionSpec
	if len(raw) == 0 || string(raw) == "null" {
		return specs, nil
	}
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return specs, nil
}

// lookupField resolves a dotted path such as "client.status".
func lookupField(payload map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func strictEqual(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func normalizeNumber(v interface{}) interface{} {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

// toFloat accepts Go numeric kinds and json.Number. Strings are not numbers.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
