package rates

import "testing"

func TestNormalize(t *testing.T) {
	if got := Normalize("+34 600-000 000"); got != "+34600000000" {
		t.Fatalf("expected +34600000000, got %q", got)
	}
	if got := Normalize("(555) 123-4567"); got != "5551234567" {
		t.Fatalf("expected 5551234567, got %q", got)
	}
	if got := Normalize("tel:+1 555"); got != "+1555" {
		t.Fatalf("expected +1555, got %q", got)
	}
}

func TestResolveTier_LongestPrefixWins(t *testing.T) {
	// +34 is STANDARD (Spain fixed) but +346 is ULTRA (Spain mobile).
	if got := ResolveTier("+34915550100"); got.ID != TierStandard {
		t.Fatalf("expected STANDARD for Spain fixed, got %s", got.ID)
	}
	if got := ResolveTier("+34600112233"); got.ID != TierUltra {
		t.Fatalf("expected ULTRA for Spain mobile, got %s", got.ID)
	}

	// UK mobile overrides UK fixed.
	if got := ResolveTier("+442071234567"); got.ID != TierStandard {
		t.Fatalf("expected STANDARD for UK fixed, got %s", got.ID)
	}
	if got := ResolveTier("+447911123456"); got.ID != TierPremium {
		t.Fatalf("expected PREMIUM for UK mobile, got %s", got.ID)
	}

	// Three levels deep: +1 vs +1787.
	if got := ResolveTier("+17875551234"); got.ID != TierStandard {
		t.Fatalf("expected STANDARD for Puerto Rico, got %s", got.ID)
	}
}

func TestResolveTier_NoMatchIsBlocked(t *testing.T) {
	got := ResolveTier("+999123456")
	if got.ID != TierBlocked {
		t.Fatalf("expected BLOCKED, got %s", got.ID)
	}
	if !got.Blocked() {
		t.Fatalf("expected Blocked()")
	}
	if got.Multiplier != 0 {
		t.Fatalf("expected multiplier 0, got %d", got.Multiplier)
	}
}

func TestResolveTier_StripsFormatting(t *testing.T) {
	if got := ResolveTier("+34 600 11 22 33"); got.ID != TierUltra {
		t.Fatalf("expected ULTRA after normalization, got %s", got.ID)
	}
}

func TestResolveTier_Multipliers(t *testing.T) {
	cases := map[string]int64{
		"+15551234567":  1,  // STANDARD
		"+447911123456": 5,  // PREMIUM
		"+34600112233":  10, // ULTRA
	}
	for num, want := range cases {
		if got := ResolveTier(num).Multiplier; got != want {
			t.Fatalf("%s: expected multiplier %d, got %d", num, want, got)
		}
	}
}

func TestTierByID(t *testing.T) {
	if got := TierByID(TierPremium); got.Multiplier != 5 {
		t.Fatalf("expected 5, got %d", got.Multiplier)
	}
	if got := TierByID("bogus"); got.ID != TierBlocked {
		t.Fatalf("expected BLOCKED fallback, got %s", got.ID)
	}
}
