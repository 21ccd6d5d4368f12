package security

import "testing"

func TestHashRefreshToken(t *testing.T) {
	h1 := HashRefreshToken("refresh-token-123")
	if h1 != HashRefreshToken("refresh-token-123") {
		t.Error("HashRefreshToken is not deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(h1))
	}
	if h1 == HashRefreshToken("refresh-token-124") {
		t.Error("different tokens produced the same hash")
	}
	if h1 == "refresh-token-123" {
		t.Error("hash must not equal the plaintext")
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("correct-token")
	tests := []struct {
		name   string
		token  string
		stored string
		want   bool
	}{
		{"match", "correct-token", stored, true},
		{"wrong token", "wrong-token", stored, false},
		{"longer stored hash", "correct-token", "a" + stored, false},
		{"same length different content", "correct-token", "0" + stored[1:], stored[0] == '0'},
		{"empty token", "", stored, false},
		{"empty stored", "correct-token", "", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefreshTokenHashEqual(tt.token, tt.stored); got != tt.want {
				t.Errorf("RefreshTokenHashEqual = %v, want %v", got, tt.want)
			}
		})
	}
}
