package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/db"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/repository"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/risk"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Notifier delivers codes and decisions to the applicant. Failures are
// logged by the service, never surfaced: a missed message must not fail an
// otherwise-persisted step.
type Notifier interface {
	SendOTP(ctx context.Context, sess *domain.OnboardingSession, code string) error
	SendDecision(ctx context.Context, sess *domain.OnboardingSession) error
}

// ResendLimiter throttles repeat OTP requests per session.
type ResendLimiter interface {
	AllowResend(ctx context.Context, sessionID string, cooldown time.Duration) (bool, error)
}

// Auditor records session events out of band.
type Auditor interface {
	RecordSessionEvent(ctx context.Context, sessionID, actor, eventType, description string)
}

type OnboardingService struct {
	repo     repository.SessionRepository
	scorer   risk.Scorer
	logger   *logging.Logger
	notifier Notifier
	limiter  ResendLimiter
	auditor  Auditor
	now      func() time.Time
}

func NewOnboardingService(repo repository.SessionRepository, scorer risk.Scorer, logger *logging.Logger) *OnboardingService {
	return &OnboardingService{
		repo:   repo,
		scorer: scorer,
		logger: logger,
		now:    time.Now,
	}
}

// NewOnboardingServiceWithCollaborators wires the optional delivery, rate
// limiting and audit collaborators used in production.
func NewOnboardingServiceWithCollaborators(
	repo repository.SessionRepository,
	scorer risk.Scorer,
	logger *logging.Logger,
	notifier Notifier,
	limiter ResendLimiter,
	auditor Auditor,
) *OnboardingService {
	s := NewOnboardingService(repo, scorer, logger)
	s.notifier = notifier
	s.limiter = limiter
	s.auditor = auditor
	return s
}

// EnsureSession resolves one durable session per client context. An existing
// identifier is reused when it still resolves; a stale one falls through to
// the client-token path so a wiped client state restarts cleanly. The
// caller handles ErrSessionStoreUnavailable by handing out an offline
// identifier.
func (s *OnboardingService) EnsureSession(ctx context.Context, clientToken, existingID string, device repository.DeviceInfo) (*domain.OnboardingSession, bool, error) {
	if existingID != "" && !domain.IsOfflineSessionID(existingID) {
		sess, err := s.repo.GetSession(ctx, existingID)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, domain.ErrUnknownSession) {
			return nil, false, err
		}
		// Stale identifier, mint or resolve via the client token instead
	}

	sess, created, err := s.repo.EnsureSession(ctx, clientToken, device)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.audit(ctx, sess.ID, "applicant", "session.created", "onboarding session created")
	}
	return sess, created, nil
}

// GetSession is the read-only fetch behind the wizard's resume screen.
func (s *OnboardingService) GetSession(ctx context.Context, sessionID string) (*domain.OnboardingSession, error) {
	if domain.IsOfflineSessionID(sessionID) {
		return nil, fmt.Errorf("offline session %s cannot be resumed: %w", sessionID, domain.ErrUnknownSession)
	}
	return s.repo.GetSession(ctx, sessionID)
}

// ApplyStep validates and persists one wizard step. The repository runs the
// closure under the session's row lock and verifies the write by read-back
// before commit, so a failure can never leave a half-applied step behind.
func (s *OnboardingService) ApplyStep(ctx context.Context, sessionID string, payload domain.StepPayload) (*domain.OnboardingSession, error) {
	if domain.IsOfflineSessionID(sessionID) {
		return nil, fmt.Errorf("offline session %s cannot accept durable steps: %w", sessionID, domain.ErrUnknownSession)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	// OTP issuance prepares the code outside the row lock; bcrypt is not
	// cheap enough to hold a lock over.
	var plainCode string
	if req, ok := payload.(*domain.OTPRequestPayload); ok {
		code := utils.GenerateOTP()
		hash, err := utils.GenerateHashValue(code)
		if err != nil {
			return nil, fmt.Errorf("hash verification code: %w", err)
		}
		req.CodeHash = hash
		// The store keeps microsecond precision; align so read-back
		// verification compares identical instants
		req.ExpiresAt = s.now().Add(utils.OTPValidity).UTC().Truncate(time.Microsecond)
		plainCode = code
	}

	var verifyErr error
	updated, err := s.repo.UpdateSession(ctx, sessionID, func(sess *domain.OnboardingSession) error {
		next, overwrite, err := domain.NextStatus(sess.Status, payload.Kind())
		if err != nil {
			return err
		}

		switch p := payload.(type) {
		case *domain.OTPRequestPayload:
			if overwrite && s.limiter != nil {
				allowed, lerr := s.limiter.AllowResend(ctx, sess.ID, utils.OTPResendCooldown)
				if lerr != nil {
					s.logger.Error(fmt.Sprintf("resend limiter unavailable for %s: %v", sess.ID, lerr))
				} else if !allowed {
					return domain.NewPayloadReasonError(domain.StepOTPRequest, "channel",
						"a code was sent moments ago, wait before requesting another")
				}
			}
		case *domain.OTPVerifyPayload:
			if sess.OTP == nil {
				return domain.ErrOutOfOrderStep
			}
			if verifyErr = s.checkOTPCode(sess, p.Code); verifyErr != nil {
				// Commit the attempt counter, surface the failure after
				return nil
			}
		}

		payload.Apply(sess)
		sess.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if verifyErr != nil {
		return nil, verifyErr
	}

	s.audit(ctx, updated.ID, "applicant", "step."+string(payload.Kind()),
		fmt.Sprintf("step %s accepted, status now %s", payload.Kind(), updated.Status))

	if plainCode != "" {
		s.deliverOTP(ctx, updated, plainCode)
	}
	return updated, nil
}

// checkOTPCode enforces expiry, the attempt cap and the hash comparison.
// A mismatch mutates only the attempt counter; the caller persists it
// without advancing status.
func (s *OnboardingService) checkOTPCode(sess *domain.OnboardingSession, code string) error {
	if s.now().After(sess.OTP.ExpiresAt) {
		return domain.NewPayloadReasonError(domain.StepOTPVerify, "code",
			"verification code expired, request a new one")
	}
	if sess.OTP.Attempts >= utils.OTPMaxAttempts {
		return domain.NewPayloadReasonError(domain.StepOTPVerify, "code",
			"too many incorrect attempts, request a new code")
	}
	if err := utils.VerifyHashValue(code, sess.OTP.CodeHash); err != nil {
		sess.OTP.Attempts++
		return domain.NewPayloadReasonError(domain.StepOTPVerify, "code", "incorrect verification code")
	}
	return nil
}

const accountIssueRetries = 3

// EvaluateRisk scores a fully verified session and resolves it to Approved
// or Escalated. Re-invocation on a terminal session is idempotent and
// returns the stored outcome; a session stranded at RiskEvaluated resumes
// account issuance.
func (s *OnboardingService) EvaluateRisk(ctx context.Context, sessionID string) (*domain.OnboardingSession, error) {
	if domain.IsOfflineSessionID(sessionID) {
		return nil, fmt.Errorf("offline session %s cannot be evaluated: %w", sessionID, domain.ErrUnknownSession)
	}

	// Terminal sessions answer from the stored outcome without re-locking
	// the row. Concurrent first evaluations still serialize below.
	current, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return current, nil
	}

	var updated *domain.OnboardingSession
	var freshlyResolved bool
	for attempt := 0; attempt < accountIssueRetries; attempt++ {
		freshlyResolved = false
		updated, err = s.repo.UpdateSession(ctx, sessionID, func(sess *domain.OnboardingSession) error {
			if sess.Status.Terminal() {
				return nil
			}
			if sess.Status == domain.StatusRiskEvaluated {
				// Scored but not resolved, finish issuance
				freshlyResolved = true
				return s.resolveOutcome(sess)
			}
			if sess.Status != domain.StatusOtpVerified {
				return domain.ErrPrerequisiteNotMet
			}

			outcome := s.scorer.Score(risk.Input{
				Identity:    sess.Identity,
				Document:    sess.Document,
				Biometric:   sess.Biometric,
				OTPVerified: sess.OTP != nil && sess.OTP.Verified,
				Now:         s.now(),
			})
			sess.Risk = &domain.Risk{
				Level:   outcome.Level,
				Score:   outcome.Score,
				Reasons: outcome.Reasons,
				Balance: decimal.Zero,
			}
			sess.Status = domain.StatusRiskEvaluated
			freshlyResolved = true
			return s.resolveOutcome(sess)
		})
		if isDuplicateAccountNumber(err) {
			// Freak collision on the account number, mint another
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	if freshlyResolved {
		s.audit(ctx, updated.ID, "system", "risk.evaluated",
			fmt.Sprintf("risk level %s (score %s), status now %s", updated.Risk.Level, updated.Risk.Score, updated.Status))
		s.deliverDecision(ctx, updated)
	}
	return updated, nil
}

// resolveOutcome turns a scored session into its terminal state. Low and
// Medium open the account; High escalates to human review with no account.
func (s *OnboardingService) resolveOutcome(sess *domain.OnboardingSession) error {
	if sess.Risk == nil {
		return domain.ErrPrerequisiteNotMet
	}
	if sess.Risk.Level == domain.RiskHigh {
		sess.Status = domain.StatusEscalated
		return nil
	}
	if sess.Risk.AccountNumber == "" {
		sess.Risk.AccountNumber = risk.NewAccountNumber()
		sess.Risk.RoutingCode = risk.RoutingCode
	}
	sess.Status = domain.StatusApproved
	return nil
}

// AccountSummary returns the opened account for an approved session.
func (s *OnboardingService) AccountSummary(ctx context.Context, sessionID string) (*domain.AccountSummaryResponse, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusApproved {
		return nil, domain.ErrPrerequisiteNotMet
	}
	return domain.ToAccountSummaryResponse(sess), nil
}

func (s *OnboardingService) deliverOTP(ctx context.Context, sess *domain.OnboardingSession, code string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendOTP(ctx, sess, code); err != nil {
		s.logger.Error(fmt.Sprintf("failed to deliver verification code for %s: %v", sess.ID, err))
	}
}

func (s *OnboardingService) deliverDecision(ctx context.Context, sess *domain.OnboardingSession) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendDecision(ctx, sess); err != nil {
		s.logger.Error(fmt.Sprintf("failed to deliver decision notice for %s: %v", sess.ID, err))
	}
}

func (s *OnboardingService) audit(ctx context.Context, sessionID, actor, eventType, description string) {
	if s.auditor == nil {
		return
	}
	s.auditor.RecordSessionEvent(ctx, sessionID, actor, eventType, description)
}

func isDuplicateAccountNumber(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == db.DuplicateEntry && pqErr.Constraint == "onboarding_sessions_account_number_key"
}
