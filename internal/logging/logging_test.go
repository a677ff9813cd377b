package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMasksKeyValuePairs(t *testing.T) {
	body := "User create username=alice pass=s3cr3t"
	got := Sanitize(body)

	assert.NotContains(t, got, "s3cr3t", "sanitized body must not contain the raw password")
	assert.Contains(t, got, "pass=***", "sanitized body must mask the pass field in place")
	assert.Contains(t, got, "username=alice", "sanitized body must leave non-sensitive fields untouched")
}

func TestSanitizeMasksToken(t *testing.T) {
	got := Sanitize("HELLO username=bob token=deadbeefdeadbeef")
	assert.NotContains(t, got, "deadbeefdeadbeef")
	assert.Contains(t, got, "token=***")
}

func TestSanitizeMasksPositionalCredentials(t *testing.T) {
	got := Sanitize("LOGIN alice pw1")
	assert.Equal(t, "LOGIN alice ***", got)
}

func TestSanitizeTruncatesLongBodies(t *testing.T) {
	body := "SNAPSHOT board=" + strings.Repeat("0", 400)
	got := Sanitize(body)
	assert.LessOrEqual(t, len(got), 240+len("...<truncated>"), "sanitized body must be bounded in length")
}
