package common

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

const snippetLen = 200

// ParseJSON unmarshals an oracle reply into T. It tries the raw text first,
// then the contents of the first fenced code block. On total failure the
// error carries the first 200 characters of the reply for diagnostics.
func ParseJSON[T any](response string) (T, error) {
	var result T

	trimmed := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(trimmed), &result); err == nil {
		return result, nil
	}

	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		var fenced T
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fenced); err == nil {
			return fenced, nil
		}
	}

	var zero T
	return zero, fmt.Errorf("no parseable JSON in oracle reply: %q", snippet(response))
}

func snippet(s string) string {
	if len(s) > snippetLen {
		return s[:snippetLen]
	}
	return s
}
