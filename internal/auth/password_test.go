package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// newTestPasswordService returns a PasswordService with bcrypt cost 4,
// the minimum allowed, so tests take milliseconds instead of ~250ms.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(4)
}

// =========================================================================
// Hash
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")
	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_Length(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("Hash() should reject passwords longer than 72 bytes")
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

// =========================================================================
// Verify
// =========================================================================

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("Verify() should return nil for a correct password, got: %v", err)
	}
	if err := ps.Verify(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() wrong password err = %v, want ErrPasswordMismatch", err)
	}
	if err := ps.Verify(hash, ""); err == nil {
		t.Error("Verify() should fail for an empty password")
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	ps := newTestPasswordService()

	err := ps.Verify("not-a-valid-bcrypt-hash", "password")
	if err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("a malformed hash is not a password mismatch")
	}
}

func TestVerify_UnusableHashNeverMatches(t *testing.T) {
	ps := newTestPasswordService()
	assert.Error(t, ps.Verify("!unusable", "!unusable"))
}

// =========================================================================
// CheckStrength
// =========================================================================

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		username string
		email    string
		wantOK   bool
		contains string
	}{
		{"good password", "newuserpassword", "newuser", "new@example.com", true, ""},
		{"mixed letters and digits", "newpassword123", "alice", "alice@example.com", true, ""},
		{"too short", "abc12", "alice", "alice@example.com", false, "too short"},
		{"too common", "Password123", "alice", "alice@example.com", false, "too common"},
		{"numeric", "9876543210", "alice", "alice@example.com", false, "entirely numeric"},
		{"same as username", "alice-wonder", "Alice-Wonder", "x@example.com", false, "too similar"},
		{"same as email local part", "wonderland", "alice", "wonderland@example.com", false, "too similar"},
		{"too long", strings.Repeat("x", 73), "alice", "alice@example.com", false, "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := CheckStrength(tt.password, tt.username, tt.email)
			if tt.wantOK {
				assert.Empty(t, problems)
				return
			}
			assert.NotEmpty(t, problems)
			assert.Contains(t, strings.Join(problems, " "), tt.contains)
		})
	}
}

// =========================================================================
// ROUND-TRIP
// =========================================================================

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	cases := []struct {
		name     string
		password string
	}{
		{"simple alphanumeric", "hello123"},
		{"special characters", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"whitespace", "  leading and trailing  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", tc.password, err)
			}
			if err := ps.Verify(hash, tc.password); err != nil {
				t.Errorf("Verify() failed for %q: %v", tc.password, err)
			}
		})
	}
}
