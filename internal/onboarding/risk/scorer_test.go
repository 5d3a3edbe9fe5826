package risk

import (
	"testing"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/shopspring/decimal"
)

var evalTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func cleanInput() Input {
	return Input{
		Identity: &domain.Identity{
			FullName:    "Asha Rao",
			DateOfBirth: time.Date(1991, 4, 12, 0, 0, 0, 0, time.UTC),
			Email:       "asha.rao@example.com",
			Phone:       "+919876543210",
		},
		Document: &domain.Document{
			Type:            domain.DocumentTypePassport,
			Number:          "P1234567",
			ConfidenceScore: decimal.NewFromInt(100),
		},
		Biometric: &domain.Biometric{
			SelfieReference: "s3://meridian-documents/x/selfie/y.jpg",
			MatchScore:      decimal.NewFromInt(100),
		},
		OTPVerified: true,
		Now:         evalTime,
	}
}

func TestScoreCleanApplicantIsLow(t *testing.T) {
	out := NewWeightedScorer().Score(cleanInput())

	if out.Level != domain.RiskLow {
		t.Fatalf("expected Low, got %s (score %s)", out.Level, out.Score)
	}
	if !out.Score.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected perfect score, got %s", out.Score)
	}
	if len(out.Reasons) != 1 || out.Reasons[0] != "all signals within normal range" {
		t.Fatalf("expected the default reason, got %v", out.Reasons)
	}
}

func TestScoreWeakSignalsIsMedium(t *testing.T) {
	in := cleanInput()
	in.Document.ConfidenceScore = decimal.NewFromInt(50)
	in.Biometric.MatchScore = decimal.NewFromInt(60)

	out := NewWeightedScorer().Score(in)

	// 100 - 50*0.35 - 40*0.40 = 66.5
	if !out.Score.Equal(decimal.NewFromFloat(66.5)) {
		t.Fatalf("expected score 66.5, got %s", out.Score)
	}
	if out.Level != domain.RiskMedium {
		t.Fatalf("expected Medium, got %s", out.Level)
	}

	wantReasons := map[string]bool{
		"document confidence below threshold": false,
		"face match below threshold":          false,
	}
	for _, r := range out.Reasons {
		if _, ok := wantReasons[r]; ok {
			wantReasons[r] = true
		}
	}
	for r, seen := range wantReasons {
		if !seen {
			t.Fatalf("expected reason %q in %v", r, out.Reasons)
		}
	}
}

func TestScoreThresholdBoundaries(t *testing.T) {
	t.Run("exactly_70_is_low", func(t *testing.T) {
		in := cleanInput()
		in.Document.TamperSigns = true
		in.Biometric.MatchScore = decimal.NewFromFloat(87.5)

		out := NewWeightedScorer().Score(in)
		// 100 - 25 - 12.5*0.40 = 70
		if !out.Score.Equal(decimal.NewFromInt(70)) {
			t.Fatalf("expected score 70, got %s", out.Score)
		}
		if out.Level != domain.RiskLow {
			t.Fatalf("expected Low at the boundary, got %s", out.Level)
		}
	})

	t.Run("exactly_45_is_medium", func(t *testing.T) {
		in := cleanInput()
		in.Document.ConfidenceScore = decimal.Zero
		in.Biometric = nil
		in.OTPVerified = false

		out := NewWeightedScorer().Score(in)
		// 100 - 100*0.35 - 20 = 45
		if !out.Score.Equal(decimal.NewFromInt(45)) {
			t.Fatalf("expected score 45, got %s", out.Score)
		}
		if out.Level != domain.RiskMedium {
			t.Fatalf("expected Medium at the boundary, got %s", out.Level)
		}
	})

	t.Run("below_45_is_high", func(t *testing.T) {
		in := cleanInput()
		in.Document.ConfidenceScore = decimal.Zero
		in.Document.TamperSigns = true
		in.Biometric = nil
		in.OTPVerified = false

		out := NewWeightedScorer().Score(in)
		if out.Level != domain.RiskHigh {
			t.Fatalf("expected High, got %s (score %s)", out.Level, out.Score)
		}
	})
}

func TestScoreUnderageIsAlwaysHigh(t *testing.T) {
	in := cleanInput()
	in.Identity.DateOfBirth = time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC)

	out := NewWeightedScorer().Score(in)

	if out.Level != domain.RiskHigh {
		t.Fatalf("expected High for underage applicant, got %s", out.Level)
	}
	if !out.Score.Equal(decimal.Zero) {
		t.Fatalf("expected zero score, got %s", out.Score)
	}
	if len(out.Reasons) != 1 || out.Reasons[0] != "applicant is below the minimum age of 18" {
		t.Fatalf("expected the single underage reason, got %v", out.Reasons)
	}
}

func TestScoreAgeBoundary(t *testing.T) {
	t.Run("eighteenth_birthday_passes", func(t *testing.T) {
		in := cleanInput()
		in.Identity.DateOfBirth = time.Date(2008, 2, 1, 0, 0, 0, 0, time.UTC)

		out := NewWeightedScorer().Score(in)
		if out.Level != domain.RiskLow {
			t.Fatalf("expected applicant turning 18 today to pass, got %s", out.Level)
		}
	})

	t.Run("day_before_fails", func(t *testing.T) {
		in := cleanInput()
		in.Identity.DateOfBirth = time.Date(2008, 2, 2, 0, 0, 0, 0, time.UTC)

		out := NewWeightedScorer().Score(in)
		if out.Level != domain.RiskHigh {
			t.Fatalf("expected applicant one day short of 18 to escalate, got %s", out.Level)
		}
	})
}

func TestScoreDisposableEmailPenalty(t *testing.T) {
	in := cleanInput()
	in.Identity.Email = "throwaway@Mailinator.com"

	out := NewWeightedScorer().Score(in)

	if !out.Score.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected 20 point penalty, got score %s", out.Score)
	}
	found := false
	for _, r := range out.Reasons {
		if r == "email uses a disposable domain" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected disposable domain reason, got %v", out.Reasons)
	}
}

func TestScoreNeverGoesNegative(t *testing.T) {
	in := cleanInput()
	in.Identity.Email = "x@tempmail.com"
	in.Document.ConfidenceScore = decimal.Zero
	in.Document.TamperSigns = true
	in.Biometric.MatchScore = decimal.Zero
	in.OTPVerified = false

	out := NewWeightedScorer().Score(in)

	if out.Score.IsNegative() {
		t.Fatalf("score must clamp at zero, got %s", out.Score)
	}
	if out.Level != domain.RiskHigh {
		t.Fatalf("expected High, got %s", out.Level)
	}
}
