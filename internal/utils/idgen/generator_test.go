package idgen

import (
	"strings"
	"testing"
)

func TestGenerateSecureID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		length     int
		wantPrefix string
	}{
		{name: "session id", prefix: "chat", length: 16, wantPrefix: "chat_"},
		{name: "message id", prefix: "msg", length: 16, wantPrefix: "msg_"},
		{name: "short id", prefix: "test", length: 8, wantPrefix: "test_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateSecureID(tt.prefix, tt.length)
			if err != nil {
				t.Fatalf("GenerateSecureID() error = %v", err)
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("GenerateSecureID() = %q, want prefix %q", got, tt.wantPrefix)
			}
			if len(got) != len(tt.wantPrefix)+tt.length {
				t.Fatalf("GenerateSecureID() length = %d, want %d", len(got), len(tt.wantPrefix)+tt.length)
			}
			if !ValidateIDFormat(got, tt.prefix) {
				t.Fatalf("generated id %q failed validation", got)
			}
		})
	}
}

func TestGenerateSecureID_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		id, err := GenerateSecureID("chat", 16)
		if err != nil {
			t.Fatalf("GenerateSecureID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidateIDFormat(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
		want   bool
	}{
		{name: "valid", id: "chat_a3f8d2k9p1m4n7q2", prefix: "chat", want: true},
		{name: "wrong prefix", id: "chat_a3f8d2k9p1m4n7q2", prefix: "msg", want: false},
		{name: "missing underscore", id: "chata3f8d2k9", prefix: "chat", want: false},
		{name: "empty suffix", id: "chat_", prefix: "chat", want: false},
		{name: "uppercase", id: "chat_A3F8", prefix: "chat", want: false},
		{name: "special chars", id: "chat_a3f8-d2k9", prefix: "chat", want: false},
		{name: "empty", id: "", prefix: "chat", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateIDFormat(tt.id, tt.prefix); got != tt.want {
				t.Errorf("ValidateIDFormat(%q, %q) = %v, want %v", tt.id, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestHashKey256(t *testing.T) {
	secret := []byte("secret")
	a := HashKey256("sk-one", secret)
	b := HashKey256("sk-one", secret)
	c := HashKey256("sk-two", secret)

	if len(a) != 64 {
		t.Fatalf("HashKey256() length = %d, want 64", len(a))
	}
	if a != b {
		t.Fatalf("HashKey256() not deterministic")
	}
	if a == c {
		t.Fatalf("HashKey256() collided for different keys")
	}
	if HashKey256("sk-one", []byte("other")) == a {
		t.Fatalf("HashKey256() ignored the secret")
	}
}
