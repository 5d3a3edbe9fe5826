package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the position of a session in the onboarding wizard. Transitions
// are linear and one-directional; Approved and Escalated are terminal.
type Status string

const (
	StatusCreated           Status = "Created"
	StatusIdentitySubmitted Status = "IdentitySubmitted"
	StatusDocumentUploaded  Status = "DocumentUploaded"
	StatusSelfieUploaded    Status = "SelfieUploaded"
	StatusOtpPending        Status = "OtpPending"
	StatusOtpVerified       Status = "OtpVerified"
	StatusRiskEvaluated     Status = "RiskEvaluated"
	StatusApproved          Status = "Approved"
	StatusEscalated         Status = "Escalated"
)

var statusOrder = []Status{
	StatusCreated,
	StatusIdentitySubmitted,
	StatusDocumentUploaded,
	StatusSelfieUploaded,
	StatusOtpPending,
	StatusOtpVerified,
	StatusRiskEvaluated,
	StatusApproved,
	StatusEscalated,
}

// Rank returns the position of a status in the wizard order, -1 for unknown.
func (s Status) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusEscalated
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if s.Rank() < 0 {
		return "", fmt.Errorf("unknown session status %q", raw)
	}
	return s, nil
}

// StepKind names one stage of the wizard.
type StepKind string

const (
	StepIdentity   StepKind = "identity"
	StepDocument   StepKind = "document"
	StepSelfie     StepKind = "selfie"
	StepOTPRequest StepKind = "otp_request"
	StepOTPVerify  StepKind = "otp_verify"
)

// stepTransitions maps each step to the status it requires and the status it
// produces. A step is also accepted when the session already sits at the
// produced status: that is the idempotent overwrite-in-place path for
// retransmitted requests, never a new transition.
var stepTransitions = map[StepKind]struct {
	From Status
	To   Status
}{
	StepIdentity:   {From: StatusCreated, To: StatusIdentitySubmitted},
	StepDocument:   {From: StatusIdentitySubmitted, To: StatusDocumentUploaded},
	StepSelfie:     {From: StatusDocumentUploaded, To: StatusSelfieUploaded},
	StepOTPRequest: {From: StatusSelfieUploaded, To: StatusOtpPending},
	StepOTPVerify:  {From: StatusOtpPending, To: StatusOtpVerified},
}

// NextStatus resolves what applying step at current yields. overwrite reports
// that the step re-submits data the session already holds.
func NextStatus(current Status, step StepKind) (next Status, overwrite bool, err error) {
	tr, ok := stepTransitions[step]
	if !ok {
		return "", false, fmt.Errorf("unknown step kind %q", step)
	}
	switch current {
	case tr.From:
		return tr.To, false, nil
	case tr.To:
		return tr.To, true, nil
	default:
		return "", false, ErrOutOfOrderStep
	}
}

// NextStep tells the wizard which step a session expects next. ok is false
// once the session has left the step sequence (OtpVerified and beyond).
func NextStep(current Status) (StepKind, bool) {
	for _, step := range []StepKind{StepIdentity, StepDocument, StepSelfie, StepOTPRequest, StepOTPVerify} {
		if stepTransitions[step].From == current {
			return step, true
		}
	}
	return "", false
}

// RiskLevel is the categorical scorer outcome driving approval vs escalation.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch RiskLevel(raw) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(raw), nil
	}
	return "", fmt.Errorf("unknown risk level %q", raw)
}

type Identity struct {
	FullName    string
	DateOfBirth time.Time
	Email       string
	Phone       string
	AddressLine string
}

type Document struct {
	Type            string
	Number          string
	StoredReference string
	ConfidenceScore decimal.Decimal
	TamperSigns     bool
}

type Biometric struct {
	SelfieReference string
	MatchScore      decimal.Decimal
}

type OTP struct {
	CodeHash  string
	Channel   string
	Verified  bool
	ExpiresAt time.Time
	Attempts  int
}

type Risk struct {
	Level         RiskLevel
	Score         decimal.Decimal
	Reasons       []string
	AccountNumber string
	RoutingCode   string
	Balance       decimal.Decimal
}

// OnboardingSession is one customer's onboarding attempt. Optional records
// fill in as the wizard advances and are never cleared; sessions are retained
// for audit and never deleted.
type OnboardingSession struct {
	ID        string
	Status    Status
	Identity  *Identity
	Document  *Document
	Biometric *Biometric
	OTP       *OTP
	Risk      *Risk
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Matches compares the semantic fields of two snapshots. It backs the
// read-back verification after every write: timestamps are excluded because
// the store owns them, everything the caller wrote must match exactly.
func (s *OnboardingSession) Matches(other *OnboardingSession) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.ID != other.ID || s.Status != other.Status {
		return false
	}
	if !identityEqual(s.Identity, other.Identity) {
		return false
	}
	if !documentEqual(s.Document, other.Document) {
		return false
	}
	if !biometricEqual(s.Biometric, other.Biometric) {
		return false
	}
	if !otpEqual(s.OTP, other.OTP) {
		return false
	}
	return riskEqual(s.Risk, other.Risk)
}

func identityEqual(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.FullName == b.FullName &&
		a.DateOfBirth.Equal(b.DateOfBirth) &&
		a.Email == b.Email &&
		a.Phone == b.Phone &&
		a.AddressLine == b.AddressLine
}

func documentEqual(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type == b.Type &&
		a.Number == b.Number &&
		a.StoredReference == b.StoredReference &&
		a.ConfidenceScore.Equal(b.ConfidenceScore) &&
		a.TamperSigns == b.TamperSigns
}

func biometricEqual(a, b *Biometric) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.SelfieReference == b.SelfieReference && a.MatchScore.Equal(b.MatchScore)
}

func otpEqual(a, b *OTP) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.CodeHash == b.CodeHash &&
		a.Channel == b.Channel &&
		a.Verified == b.Verified &&
		a.ExpiresAt.Equal(b.ExpiresAt) &&
		a.Attempts == b.Attempts
}

func riskEqual(a, b *Risk) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Reasons) != len(b.Reasons) {
		return false
	}
	for i := range a.Reasons {
		if a.Reasons[i] != b.Reasons[i] {
			return false
		}
	}
	return a.Level == b.Level &&
		a.Score.Equal(b.Score) &&
		a.AccountNumber == b.AccountNumber &&
		a.RoutingCode == b.RoutingCode &&
		a.Balance.Equal(b.Balance)
}

const (
	// SessionIDPrefix marks durable identifiers issued by the store.
	SessionIDPrefix = "MRD-"
	// OfflineSessionIDPrefix marks degraded identifiers handed out when the
	// store is unreachable. They are never persisted and no durable step
	// accepts them.
	OfflineSessionIDPrefix = "MRD-OFFLINE-"
)

// NewSessionID mints an opaque durable identifier, e.g. "MRD-9F2C41AB".
func NewSessionID() string {
	u := uuid.New()
	return SessionIDPrefix + strings.ToUpper(hex.EncodeToString(u[:4]))
}

// NewOfflineSessionID mints a degraded identifier, e.g. "MRD-OFFLINE-9F2C41AB".
func NewOfflineSessionID() string {
	u := uuid.New()
	return OfflineSessionIDPrefix + strings.ToUpper(hex.EncodeToString(u[:4]))
}

func IsOfflineSessionID(id string) bool {
	return strings.HasPrefix(id, OfflineSessionIDPrefix)
}
