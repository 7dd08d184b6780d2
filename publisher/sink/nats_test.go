package sink

import "testing"

func TestSanitizeStreamName(t *testing.T) {
	tests := map[string]string{
		"s3avro.published": "s3avro_published",
		"plain":            "plain",
		"a.*.>":            "a___",
		"with space":       "with_space",
	}

	for in, want := range tests {
		if got := sanitizeStreamName(in); got != want {
			t.Errorf("sanitizeStreamName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewNatsSinkUnreachable(t *testing.T) {
	if _, err := NewNatsSink("nats://127.0.0.1:1"); err == nil {
		t.Error("expected connection error for unreachable server")
	}
}
