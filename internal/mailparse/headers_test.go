package mailparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMessageIDs(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{"empty", "", nil},
		{"single", "<a@x>", []string{"a@x"}},
		{"ordered", "<a@x> <b@x>\r\n <c@x>", []string{"a@x", "b@x", "c@x"}},
		{"duplicates keep first", "<a@x> <b@x> <a@x>", []string{"a@x", "b@x"}},
		{"no brackets", "a@x b@x", []string{"a@x", "b@x"}},
		{"comments between ids", "<a@x> (old) <b@x>", []string{"a@x", "b@x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMessageIDs(tt.header))
		})
	}
}

func TestFormatMessageID(t *testing.T) {
	assert.Equal(t, "<a@x>", FormatMessageID("a@x"))
	assert.Equal(t, "<a@x>", FormatMessageID("<a@x>"))
	assert.Equal(t, "", FormatMessageID("  "))
}

func TestFormatReferences(t *testing.T) {
	assert.Equal(t, "<m1@x> <m2@x>", FormatReferences([]string{"m1@x", "m2@x"}))
	assert.Equal(t, "", FormatReferences(nil))
}

func TestStripBrackets(t *testing.T) {
	assert.Equal(t, "a@x", StripBrackets(" <a@x> "))
	assert.Equal(t, "a@x", StripBrackets("a@x"))
}

func TestSyntheticMessageID(t *testing.T) {
	assert.Equal(t, "uid-1@threadmail.invalid", SyntheticMessageID(1))
}

func TestParseFromHeader(t *testing.T) {
	tests := []struct {
		input     string
		wantName  string
		wantEmail string
	}{
		{"sender@example.com", "", "sender@example.com"},
		{"Test Sender <sender@example.com>", "Test Sender", "sender@example.com"},
		{`"Test Sender" <sender@example.com>`, "Test Sender", "sender@example.com"},
		{"", "", ""},
		{"  Test Sender  <sender@example.com>  ", "Test Sender", "sender@example.com"},
		{"Operator op@shop.com", "Operator", "op@shop.com"},
		{"op@shop.com>", "", "op@shop.com"},
		{"<op@shop.com", "", "op@shop.com"},
		{`"Ops, Team" op@shop.com`, "Ops, Team", "op@shop.com"},
		{"undisclosed-recipients", "", "undisclosed-recipients"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			name, email := parseFromHeader(tt.input)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantEmail, email)
		})
	}
}
