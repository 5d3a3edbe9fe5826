package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SessionResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	NextStep  string             `json:"next_step,omitempty"`
	Degraded  bool               `json:"degraded,omitempty"`
	Identity  *IdentityResponse  `json:"identity,omitempty"`
	Document  *DocumentResponse  `json:"document,omitempty"`
	Biometric *BiometricResponse `json:"biometric,omitempty"`
	OTP       *OTPResponse       `json:"otp,omitempty"`
	Risk      *RiskResponse      `json:"risk,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type IdentityResponse struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	AddressLine string `json:"address_line,omitempty"`
}

type DocumentResponse struct {
	Type            string          `json:"id_type"`
	Number          string          `json:"id_number"`
	StoredReference string          `json:"stored_reference"`
	ConfidenceScore decimal.Decimal `json:"confidence_score"`
	TamperSigns     bool            `json:"tamper_signs"`
}

type BiometricResponse struct {
	SelfieReference string          `json:"selfie_reference"`
	MatchScore      decimal.Decimal `json:"match_score"`
}

// OTPResponse never carries the code hash.
type OTPResponse struct {
	Channel   string    `json:"channel"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RiskResponse struct {
	Level         string          `json:"level"`
	Score         decimal.Decimal `json:"score"`
	Reasons       []string        `json:"reasons,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	RoutingCode   string          `json:"routing_code,omitempty"`
}

func ToSessionResponse(s *OnboardingSession) *SessionResponse {
	resp := &SessionResponse{
		ID:        s.ID,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if step, ok := NextStep(s.Status); ok {
		resp.NextStep = string(step)
	}
	if s.Identity != nil {
		resp.Identity = &IdentityResponse{
			FullName:    s.Identity.FullName,
			DateOfBirth: s.Identity.DateOfBirth.Format(DateOfBirthLayout),
			Email:       s.Identity.Email,
			Phone:       s.Identity.Phone,
			AddressLine: s.Identity.AddressLine,
		}
	}
	if s.Document != nil {
		resp.Document = &DocumentResponse{
			Type:            s.Document.Type,
			Number:          s.Document.Number,
			StoredReference: s.Document.StoredReference,
			ConfidenceScore: s.Document.ConfidenceScore,
			TamperSigns:     s.Document.TamperSigns,
		}
	}
	if s.Biometric != nil {
		resp.Biometric = &BiometricResponse{
			SelfieReference: s.Biometric.SelfieReference,
			MatchScore:      s.Biometric.MatchScore,
		}
	}
	if s.OTP != nil {
		resp.OTP = &OTPResponse{
			Channel:   s.OTP.Channel,
			Verified:  s.OTP.Verified,
			ExpiresAt: s.OTP.ExpiresAt,
		}
	}
	if s.Risk != nil {
		resp.Risk = &RiskResponse{
			Level:         string(s.Risk.Level),
			Score:         s.Risk.Score,
			Reasons:       s.Risk.Reasons,
			AccountNumber: MaskAccountNumber(s.Risk.AccountNumber),
			RoutingCode:   s.Risk.RoutingCode,
		}
	}
	return resp
}

// ToOfflineSessionResponse wraps a degraded identifier so clients can tell it
// apart from a durable session.
func ToOfflineSessionResponse(id string, now time.Time) *SessionResponse {
	return &SessionResponse{
		ID:        id,
		Status:    string(StatusCreated),
		NextStep:  string(StepIdentity),
		Degraded:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type AccountSummaryResponse struct {
	SessionID     string          `json:"session_id"`
	HolderName    string          `json:"holder_name"`
	AccountNumber string          `json:"account_number"`
	RoutingCode   string          `json:"routing_code"`
	Balance       decimal.Decimal `json:"balance"`
	OpenedAt      time.Time       `json:"opened_at"`
}

func ToAccountSummaryResponse(s *OnboardingSession) *AccountSummaryResponse {
	summary := &AccountSummaryResponse{
		SessionID: s.ID,
		OpenedAt:  s.UpdatedAt,
	}
	if s.Identity != nil {
		summary.HolderName = s.Identity.FullName
	}
	if s.Risk != nil {
		summary.AccountNumber = s.Risk.AccountNumber
		summary.RoutingCode = s.Risk.RoutingCode
		summary.Balance = s.Risk.Balance
	}
	return summary
}

// MaskAccountNumber keeps the last group visible, e.g. "#### #### 0421".
func MaskAccountNumber(n string) string {
	if n == "" {
		return ""
	}
	groups := strings.Fields(n)
	if len(groups) < 2 {
		if len(n) <= 4 {
			return n
		}
		return strings.Repeat("#", len(n)-4) + n[len(n)-4:]
	}
	masked := make([]string, len(groups))
	for i, g := range groups {
		if i == len(groups)-1 {
			masked[i] = g
			continue
		}
		masked[i] = strings.Repeat("#", len(g))
	}
	return strings.Join(masked, " ")
}
