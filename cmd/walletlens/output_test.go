package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Mints []string `json:"mints"`
	Count int      `json:"count"`
}

func TestWriteJSON_NoFilters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, sample{Mints: []string{"a"}, Count: 1}, nil))
	assert.JSONEq(t, `{"mints":["a"],"count":1}`, buf.String())
}

func TestWriteJSON_Filter(t *testing.T) {
	var buf bytes.Buffer
	err := writeJSON(&buf, sample{Mints: []string{"a", "b"}, Count: 2}, []string{".count"})
	require.NoError(t, err)
	assert.Equal(t, "2\n", buf.String())
}

func TestWriteJSON_ChainedFiltersFanOut(t *testing.T) {
	var buf bytes.Buffer
	err := writeJSON(&buf, sample{Mints: []string{"a", "b"}}, []string{".mints[]", "ascii_upcase"})
	require.NoError(t, err)
	assert.Equal(t, "\"A\"\n\"B\"\n", buf.String())
}

func TestWriteJSON_InvalidFilter(t *testing.T) {
	var buf bytes.Buffer
	err := writeJSON(&buf, sample{}, []string{".mints["})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
	assert.Empty(t, buf.String())
}

func TestWriteJSON_FilterRuntimeError(t *testing.T) {
	var buf bytes.Buffer
	err := writeJSON(&buf, sample{Count: 1}, []string{".count | keys"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq filter")
}
