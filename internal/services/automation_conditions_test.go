package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreaterThan_StrictBoundary(t *testing.T) {
	p, err := CompileCondition(ConditionSpec{Field: "amount", Operator: OpGreaterThan, Value: 1000})
	require.NoError(t, err)

	assert.True(t, p.Match(map[string]interface{}{"amount": 1001.0}))
	assert.False(t, p.Match(map[string]interface{}{"amount": 1000.0}))
	assert.False(t, p.Match(map[string]interface{}{"amount": 999}))
	assert.False(t, p.Match(map[string]interface{}{"amount": "1001"}), "strings are not numbers")
	assert.False(t, p.Match(map[string]interface{}{}), "missing field fails")
}

func TestCompileCondition_Errors(t *testing.T) {
	_, err := CompileCondition(ConditionSpec{Field: "x", Operator: "matches_regex", Value: "a"})
	assert.True(t, errors.Is(err, ErrUnknownOperator))

	_, err = CompileCondition(ConditionSpec{Field: "x", Operator: OpGreaterThan, Value: "ten"})
	assert.True(t, errors.Is(err, ErrInvalidCondition))

	_, err = CompileCondition(ConditionSpec{Field: " ", Operator: OpEquals, Value: 1})
	assert.True(t, errors.Is(err, ErrInvalidCondition))
}

func TestEquals_NoCoercion(t *testing.T) {
	tests := []struct {
		name    string
		want    interface{}
		payload interface{}
		match   bool
	}{
		{"same string", "active", "active", true},
		{"different string", "active", "lead", false},
		{"int vs float", 5, 5.0, true},
		{"string vs number", "5", 5.0, false},
		{"bool", true, true, true},
		{"bool vs string", true, "true", false},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CompileCondition(ConditionSpec{Field: "v", Operator: OpEquals, Value: tt.want})
			require.NoError(t, err)
			assert.Equal(t, tt.match, p.Match(map[string]interface{}{"v": tt.payload}))
		})
	}
}

func TestContains(t *testing.T) {
	p, err := CompileCondition(ConditionSpec{Field: "client.tags", Operator: OpContains, Value: "vip"})
	require.NoError(t, err)

	assert.True(t, p.Match(map[string]interface{}{"client": map[string]interface{}{"tags": []interface{}{"new", "vip"}}}))
	assert.False(t, p.Match(map[string]interface{}{"client": map[string]interface{}{"tags": []interface{}{"new"}}}))
	assert.False(t, p.Match(map[string]interface{}{"client": map[string]interface{}{"tags": nil}}))
	assert.True(t, p.Match(map[string]interface{}{"client": map[string]interface{}{"tags": "is a vip client"}}))
	assert.False(t, p.Match(map[string]interface{}{"client": map[string]interface{}{"tags": 42.0}}))
}

func TestConditions_AndSemantics(t *testing.T) {
	conds, err := ParseConditions([]byte(`[
		{"field":"client.status","operator":"equals","value":"active"},
		{"field":"percentage","operator":"greater_than","value":80}
	]`))
	require.NoError(t, err)
	require.Len(t, conds, 2)

	payload := map[string]interface{}{
		"client":     map[string]interface{}{"status": "active"},
		"percentage": 92.5,
	}
	assert.True(t, conds.Match(payload))

	payload["percentage"] = 80.0
	assert.False(t, conds.Match(payload))
}

func TestParseConditions_EmptyMatchesEverything(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("null"), []byte("[]")} {
		conds, err := ParseConditions(raw)
		require.NoError(t, err)
		assert.True(t, conds.Match(map[string]interface{}{"anything": 1}))
	}
}

func TestParseConditions_UnknownOperatorNeverPasses(t *testing.T) {
	_, err := ParseConditions([]byte(`[{"field":"a","operator":"not_equals","value":1}]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOperator))
}
