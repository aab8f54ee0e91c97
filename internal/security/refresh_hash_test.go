package security

import "testing"

func TestHashRefreshToken_Deterministic(t *testing.T) {
	a := HashRefreshToken("token-value")
	b := HashRefreshToken("token-value")
	if a != b {
		t.Error("same token should hash identically")
	}
	if a == HashRefreshToken("other-token") {
		t.Error("different tokens should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("token-value")
	if !RefreshTokenHashEqual("token-value", stored) {
		t.Error("matching token should compare equal")
	}
	if RefreshTokenHashEqual("other-token", stored) {
		t.Error("non-matching token should not compare equal")
	}
}
