package auth

import (
	"strings"
	"testing"
)

func TestTokenGeneration(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("Token %q missing prefix %q", token, TokenPrefix)
	}
	if !IsValidTokenFormat(token) {
		t.Errorf("Generated token has invalid format: %s", token)
	}

	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("HashToken() error = %v", err)
	}

	if !VerifyToken(token, hash) {
		t.Error("VerifyToken() returned false for correct token")
	}
	if VerifyToken("wrong_token", hash) {
		t.Error("VerifyToken() returned true for wrong token")
	}
}

func TestTokensAreUnique(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	b, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if a == b {
		t.Error("Two generated tokens should not collide")
	}
}

func TestIsValidTokenFormat(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"missing prefix", strings.Repeat("ab", TokenLength), false},
		{"too short", TokenPrefix + "abcd", false},
		{"not hex", TokenPrefix + strings.Repeat("zz", TokenLength), false},
		{"valid", TokenPrefix + strings.Repeat("ab", TokenLength), true},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTokenFormat(tt.token); got != tt.want {
				t.Errorf("IsValidTokenFormat(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestMaskToken(t *testing.T) {
	token := TokenPrefix + strings.Repeat("ab", TokenLength)
	masked := MaskToken(token)

	if strings.Contains(masked, strings.Repeat("ab", TokenLength)) {
		t.Error("MaskToken() leaked the full secret")
	}
	if !strings.HasPrefix(masked, TokenPrefix) {
		t.Errorf("MaskToken() = %q, should keep the display prefix", masked)
	}

	if got := MaskToken("short"); got != "****" {
		t.Errorf("MaskToken(short) = %q, want ****", got)
	}
}

func TestVerifyToken_HashIsNotThePlaintext(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("HashToken() error = %v", err)
	}
	if strings.Contains(hash, strings.TrimPrefix(token, TokenPrefix)) {
		t.Error("Hash must not embed the plaintext secret")
	}
}
