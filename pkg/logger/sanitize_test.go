package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "typical address", email: "reader@inkwell.blog", expected: "r*****@*******.blog"},
		{name: "single char user", email: "a@example.com", expected: "a@*******.com"},
		{name: "subdomain", email: "editor@mail.inkwell.blog", expected: "e*****@****.*******.blog"},
		{name: "not an email", email: "plainstring", expected: "[invalid-email]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizedEmail(tt.email))
		})
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("token=abc123"))
	assert.True(t, SanitizeQueryString("next=/home&PASSWORD=x"))
	assert.True(t, SanitizeQueryString("email=me%40example.com"))
	assert.False(t, SanitizeQueryString("page=2&limit=50"))
	assert.False(t, SanitizeQueryString(""))
}

func TestRedactDetails(t *testing.T) {
	in := map[string]interface{}{
		"password":   "hunter2",
		"MFA_Code":   "123456",
		"reason":     "failed_attempts",
		"ip_address": "10.0.0.1",
	}

	out := RedactDetails(in)

	assert.Equal(t, "[REDACTED]", out["password"])
	assert.Equal(t, "[REDACTED]", out["MFA_Code"])
	assert.Equal(t, "failed_attempts", out["reason"])
	assert.Equal(t, "10.0.0.1", out["ip_address"])
	assert.Equal(t, "hunter2", in["password"], "input map is not mutated")
}

func TestRedactDetailsNil(t *testing.T) {
	assert.Nil(t, RedactDetails(nil))
}
