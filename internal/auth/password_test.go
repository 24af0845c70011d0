package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Str0ng!pass" {
		t.Fatal("hash must not equal plaintext")
	}
	if err := VerifyPassword(hash, "Str0ng!pass"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, err := HashPassword("", bcrypt.MinCost); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestCheckStrengthReportsAllViolations(t *testing.T) {
	got := CheckStrength("abc")
	if got.Valid {
		t.Fatal("expected invalid")
	}
	// Short, no uppercase, no digit, no symbol: four violations at once.
	if len(got.Violations) != 4 {
		t.Fatalf("violations = %v, want 4 entries", got.Violations)
	}
}

func TestCheckStrength(t *testing.T) {
	cases := []struct {
		password   string
		valid      bool
		violations int
	}{
		{"Str0ng!pass", true, 0},
		{"short1!", false, 2},
		{"alllowercase1!", false, 1},
		{"ALLUPPERCASE1!", false, 1},
		{"NoDigitsHere!", false, 1},
		{"NoSymbols123", false, 1},
		{"", false, 5},
	}
	for _, tc := range cases {
		got := CheckStrength(tc.password)
		if got.Valid != tc.valid {
			t.Errorf("CheckStrength(%q).Valid = %v, want %v", tc.password, got.Valid, tc.valid)
		}
		if len(got.Violations) != tc.violations {
			t.Errorf("CheckStrength(%q) violations = %v, want %d", tc.password, got.Violations, tc.violations)
		}
	}
}
