package risk

import (
	"strings"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/shopspring/decimal"
)

// Input is everything the scorer may consider about one session.
type Input struct {
	Identity    *domain.Identity
	Document    *domain.Document
	Biometric   *domain.Biometric
	OTPVerified bool
	Now         time.Time
}

// Outcome is the scorer contract: a categorical level, the numeric score
// behind it, and reviewer-readable reasons for every deduction.
type Outcome struct {
	Level   domain.RiskLevel
	Score   decimal.Decimal
	Reasons []string
}

// Scorer is pluggable so the compliance team can swap the formula without
// touching the session lifecycle.
type Scorer interface {
	Score(in Input) Outcome
}

// Level thresholds: Low >= 70 > Medium >= 45 > High.
var (
	lowThreshold    = decimal.NewFromInt(70)
	mediumThreshold = decimal.NewFromInt(45)

	perfect = decimal.NewFromInt(100)

	confidenceWeight = decimal.NewFromFloat(0.35)
	faceMatchWeight  = decimal.NewFromFloat(0.40)
	tamperPenalty    = decimal.NewFromInt(25)
	otpPenalty       = decimal.NewFromInt(20)
	emailPenalty     = decimal.NewFromInt(20)
)

// MinimumAge gates account opening outright.
const MinimumAge = 18

var disposableEmailDomains = map[string]bool{
	"mailinator.com":    true,
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"throwaway.email":   true,
	"yopmail.com":       true,
}

// WeightedScorer is the default formula: start from a perfect score and
// subtract weighted penalties for every weak signal.
type WeightedScorer struct{}

func NewWeightedScorer() *WeightedScorer {
	return &WeightedScorer{}
}

func (w *WeightedScorer) Score(in Input) Outcome {
	score := perfect
	var reasons []string

	if in.Identity != nil {
		if age(in.Identity.DateOfBirth, in.Now) < MinimumAge {
			// Underage applications are escalated no matter what the
			// remaining signals say
			return Outcome{
				Level:   domain.RiskHigh,
				Score:   decimal.Zero,
				Reasons: []string{"applicant is below the minimum age of 18"},
			}
		}
		if disposableEmail(in.Identity.Email) {
			score = score.Sub(emailPenalty)
			reasons = append(reasons, "email uses a disposable domain")
		}
	}

	if in.Document != nil {
		shortfall := perfect.Sub(in.Document.ConfidenceScore)
		if shortfall.IsPositive() {
			score = score.Sub(shortfall.Mul(confidenceWeight))
		}
		if in.Document.ConfidenceScore.LessThan(decimal.NewFromInt(80)) {
			reasons = append(reasons, "document confidence below threshold")
		}
		if in.Document.TamperSigns {
			score = score.Sub(tamperPenalty)
			reasons = append(reasons, "document shows possible tampering")
		}
	}

	if in.Biometric != nil {
		shortfall := perfect.Sub(in.Biometric.MatchScore)
		if shortfall.IsPositive() {
			score = score.Sub(shortfall.Mul(faceMatchWeight))
		}
		if in.Biometric.MatchScore.LessThan(decimal.NewFromInt(75)) {
			reasons = append(reasons, "face match below threshold")
		}
	}

	if !in.OTPVerified {
		score = score.Sub(otpPenalty)
		reasons = append(reasons, "phone ownership not verified")
	}

	if score.IsNegative() {
		score = decimal.Zero
	}
	score = score.Round(2)

	level := domain.RiskHigh
	switch {
	case score.GreaterThanOrEqual(lowThreshold):
		level = domain.RiskLow
	case score.GreaterThanOrEqual(mediumThreshold):
		level = domain.RiskMedium
	}

	if len(reasons) == 0 {
		reasons = []string{"all signals within normal range"}
	}

	return Outcome{Level: level, Score: score, Reasons: reasons}
}

func age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		years--
	}
	return years
}

func disposableEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return disposableEmailDomains[strings.ToLower(email[at+1:])]
}
