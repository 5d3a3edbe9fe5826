package repository

import (
	"context"

	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
)

// DeviceInfo is the optional mobile-client registration captured at session
// start, used for decision push notifications.
type DeviceInfo struct {
	Platform  string
	PushToken string
}

// ListFilter narrows the review-panel application listing.
type ListFilter struct {
	Status    string
	RiskLevel string
	Limit     int
	Offset    int
}

// Stats backs the review-panel dashboard.
type Stats struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByRiskLevel   map[string]int64 `json:"by_risk_level"`
	ApprovedToday int64            `json:"approved_today"`
}

// SessionRepository is the durable store behind the session manager. Every
// mutation runs under the session's row lock and is read back and compared
// before commit; a mismatch rolls the transaction back and surfaces
// domain.ErrPersistenceVerificationFailed.
type SessionRepository interface {
	// EnsureSession resolves the session bound to clientToken, creating the
	// session and its binding atomically when absent. Concurrent creation
	// attempts for one token converge on a single session.
	EnsureSession(ctx context.Context, clientToken string, device DeviceInfo) (sess *domain.OnboardingSession, created bool, err error)

	GetSession(ctx context.Context, id string) (*domain.OnboardingSession, error)

	GetSessionByClientToken(ctx context.Context, clientToken string) (*domain.OnboardingSession, error)

	// UpdateSession loads the session under FOR UPDATE, applies fn, writes
	// the result, re-reads it and verifies the write before committing.
	// Errors returned by fn abort the transaction untouched.
	UpdateSession(ctx context.Context, id string, fn func(s *domain.OnboardingSession) error) (*domain.OnboardingSession, error)

	ListSessions(ctx context.Context, filter ListFilter) ([]*domain.OnboardingSession, int64, error)

	Stats(ctx context.Context) (*Stats, error)

	GetDeviceForSession(ctx context.Context, sessionID string) (DeviceInfo, error)
}
