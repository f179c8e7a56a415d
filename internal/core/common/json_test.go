package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSON_Direct(t *testing.T) {
	got, err := ParseJSON[payload](`{"name": "alpha", "count": 2}`)
	assert.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)
	assert.Equal(t, 2, got.Count)
}

func TestParseJSON_FencedWithLanguageTag(t *testing.T) {
	reply := "Here is the result:\n```json\n{\"name\": \"beta\", \"count\": 7}\n```\nLet me know if you need more."
	got, err := ParseJSON[payload](reply)
	assert.NoError(t, err)
	assert.Equal(t, "beta", got.Name)
	assert.Equal(t, 7, got.Count)
}

func TestParseJSON_FencedWithoutLanguageTag(t *testing.T) {
	reply := "```\n{\"name\": \"gamma\", \"count\": 1}\n```"
	got, err := ParseJSON[payload](reply)
	assert.NoError(t, err)
	assert.Equal(t, "gamma", got.Name)
}

func TestParseJSON_FailureCarriesSnippet(t *testing.T) {
	long := "definitely not json " + strings.Repeat("x", 500)
	_, err := ParseJSON[payload](long)
	assert.Error(t, err)
	// The diagnostic snippet is capped at 200 characters of the reply.
	assert.Contains(t, err.Error(), long[:200])
	assert.NotContains(t, err.Error(), long[:201])
}
