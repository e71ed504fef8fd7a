package handlers

import "testing"

func TestParseNumericID(t *testing.T) {
	cases := []struct {
		name     string
		value    any
		expected int64
		ok       bool
	}{
		{name: "json number", value: float64(42), expected: 42, ok: true},
		{name: "string", value: "17", expected: 17, ok: true},
		{name: "padded string", value: "  8 ", expected: 8, ok: true},
		{name: "int64", value: int64(5), expected: 5, ok: true},
		{name: "empty string", value: "", ok: false},
		{name: "non numeric string", value: "abc", ok: false},
		{name: "nil", value: nil, ok: false},
		{name: "bool", value: true, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseNumericID(tc.value)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && got != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestNilIfEmpty(t *testing.T) {
	if got := nilIfEmpty("  "); got != nil {
		t.Fatalf("expected nil for blank string, got %v", got)
	}
	if got := nilIfEmpty(" x "); got != "x" {
		t.Fatalf("expected trimmed value, got %v", got)
	}
}

func TestDefaultString(t *testing.T) {
	if got := defaultString("", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := defaultString("  ", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank, got %s", got)
	}
	if got := defaultString("name", "fallback"); got != "name" {
		t.Fatalf("expected name, got %s", got)
	}
}
