package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBodyRoundTrip(t *testing.T) {
	r := Record{
		PK: "cn4s5l0n0kfs73c5k1ag",
		SK: 1700000000123,
		Fields: map[string]string{
			"first_name": "Ada",
			"email":      "ada@example.com",
			"note":       "",
		},
	}

	body, err := json.Marshal(r)
	require.NoError(t, err)

	var got Record
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, r, got)
}

func TestRecordBodyShape(t *testing.T) {
	r := Record{PK: "abc", SK: 42, Fields: map[string]string{"name": "widget"}}

	body, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pk":"abc","sk":42,"name":"widget"}`, string(body))
}

func TestRecordUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{invalid json}`},
		{name: "null", body: `null`},
		{name: "missing pk", body: `{"sk":1,"name":"x"}`},
		{name: "empty pk", body: `{"pk":"","sk":1}`},
		{name: "missing sk", body: `{"pk":"a","name":"x"}`},
		{name: "string sk", body: `{"pk":"a","sk":"1"}`},
		{name: "fractional sk", body: `{"pk":"a","sk":1.5}`},
		{name: "non string field", body: `{"pk":"a","sk":1,"age":30}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			assert.Error(t, json.Unmarshal([]byte(tt.body), &r))
		})
	}
}
