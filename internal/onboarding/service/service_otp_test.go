package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/risk"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
)

func freezeClock(env *testEnv, at time.Time) {
	env.svc.now = func() time.Time { return at }
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func sessionAtSelfieUploaded(t *testing.T, env *testEnv) *domain.OnboardingSession {
	t.Helper()
	sess := startSession(t, env)
	mustApply(t, env, sess.ID, identityPayload())
	mustApply(t, env, sess.ID, documentPayload())
	return mustApply(t, env, sess.ID, selfiePayload())
}

func TestOTPRequestIssuesHashedCode(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	issuedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	freezeClock(env, issuedAt)
	sess := sessionAtSelfieUploaded(t, env)

	updated := mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})

	if updated.Status != domain.StatusOtpPending {
		t.Fatalf("expected OtpPending, got %s", updated.Status)
	}
	if updated.OTP == nil || updated.OTP.Channel != domain.OTPChannelSMS {
		t.Fatalf("expected an sms OTP record, got %+v", updated.OTP)
	}

	code := env.notifier.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("expected a 6 digit code, got %q", code)
	}
	if updated.OTP.CodeHash == code {
		t.Fatal("the stored hash must not be the plain code")
	}
	if err := utils.VerifyHashValue(code, updated.OTP.CodeHash); err != nil {
		t.Fatalf("delivered code does not match the stored hash: %v", err)
	}
	if !updated.OTP.ExpiresAt.Equal(issuedAt.Add(utils.OTPValidity)) {
		t.Fatalf("expected expiry %v, got %v", issuedAt.Add(utils.OTPValidity), updated.OTP.ExpiresAt)
	}
}

func TestOTPVerifyCorrectCode(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := sessionAtSelfieUploaded(t, env)
	mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelEmail})

	updated := mustApply(t, env, sess.ID, &domain.OTPVerifyPayload{Code: env.notifier.lastCode(t)})

	if updated.Status != domain.StatusOtpVerified {
		t.Fatalf("expected OtpVerified, got %s", updated.Status)
	}
	if updated.OTP == nil || !updated.OTP.Verified {
		t.Fatal("expected the OTP record marked verified")
	}
}

func TestOTPVerifyWrongCodeCountsAttempt(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := sessionAtSelfieUploaded(t, env)
	mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})
	code := env.notifier.lastCode(t)

	_, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPVerifyPayload{Code: wrongCode(code)})
	ipe, ok := domain.IsInvalidPayload(err)
	if !ok || !strings.Contains(ipe.Reason, "incorrect") {
		t.Fatalf("expected incorrect-code failure, got %v", err)
	}

	stored, _ := env.repo.GetSession(context.Background(), sess.ID)
	if stored.Status != domain.StatusOtpPending {
		t.Fatalf("failed verification must leave status, got %s", stored.Status)
	}
	if stored.OTP.Attempts != 1 {
		t.Fatalf("expected the attempt committed, got %d", stored.OTP.Attempts)
	}

	// The right code still works afterwards
	updated := mustApply(t, env, sess.ID, &domain.OTPVerifyPayload{Code: code})
	if updated.Status != domain.StatusOtpVerified {
		t.Fatalf("expected OtpVerified after recovery, got %s", updated.Status)
	}
}

func TestOTPVerifyExpiredCode(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	issuedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	freezeClock(env, issuedAt)
	sess := sessionAtSelfieUploaded(t, env)
	mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})
	code := env.notifier.lastCode(t)

	freezeClock(env, issuedAt.Add(utils.OTPValidity+time.Second))
	_, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPVerifyPayload{Code: code})

	ipe, ok := domain.IsInvalidPayload(err)
	if !ok || !strings.Contains(ipe.Reason, "expired") {
		t.Fatalf("expected expired-code failure, got %v", err)
	}

	stored, _ := env.repo.GetSession(context.Background(), sess.ID)
	if stored.Status != domain.StatusOtpPending {
		t.Fatalf("expected status to hold at OtpPending, got %s", stored.Status)
	}
}

func TestOTPVerifyAttemptCap(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := sessionAtSelfieUploaded(t, env)
	mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})
	code := env.notifier.lastCode(t)

	for i := 0; i < utils.OTPMaxAttempts; i++ {
		if _, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPVerifyPayload{Code: wrongCode(code)}); err == nil {
			t.Fatalf("attempt %d: expected failure", i+1)
		}
	}

	// Even the correct code is refused once the cap is hit
	_, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPVerifyPayload{Code: code})
	ipe, ok := domain.IsInvalidPayload(err)
	if !ok || !strings.Contains(ipe.Reason, "too many") {
		t.Fatalf("expected attempt-cap failure, got %v", err)
	}

	// A fresh code resets the counter
	mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})
	updated := mustApply(t, env, sess.ID, &domain.OTPVerifyPayload{Code: env.notifier.lastCode(t)})
	if updated.Status != domain.StatusOtpVerified {
		t.Fatalf("expected OtpVerified after re-issue, got %s", updated.Status)
	}
}

func TestOTPResendCooldown(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := sessionAtSelfieUploaded(t, env)

	// The first issue is a transition, not a resend, the limiter stays out
	mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})
	if env.limiter.calls != 0 {
		t.Fatalf("first issue must not consult the limiter, got %d calls", env.limiter.calls)
	}

	env.limiter.allow = false
	_, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})
	ipe, ok := domain.IsInvalidPayload(err)
	if !ok || !strings.Contains(ipe.Reason, "moments ago") {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}
	if env.limiter.calls != 1 {
		t.Fatalf("expected one limiter call, got %d", env.limiter.calls)
	}

	env.limiter.allow = true
	if _, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS}); err != nil {
		t.Fatalf("expected resend once the cooldown clears, got %v", err)
	}
}

func TestOTPResendLimiterOutageFailsOpen(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := sessionAtSelfieUploaded(t, env)
	mustApply(t, env, sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS})

	env.limiter.allow = false
	env.limiter.err = errors.New("redis connection refused")
	if _, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPRequestPayload{Channel: domain.OTPChannelSMS}); err != nil {
		t.Fatalf("a limiter outage must not block resends, got %v", err)
	}
}

func TestOTPVerifyWithoutIssuedCode(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := startSession(t, env)

	// Force a stored session into OtpPending with no OTP record, the closure
	// must refuse rather than dereference
	env.repo.sessions[sess.ID].Status = domain.StatusOtpPending

	_, err := env.svc.ApplyStep(context.Background(), sess.ID, &domain.OTPVerifyPayload{Code: "123456"})
	if !errors.Is(err, domain.ErrOutOfOrderStep) {
		t.Fatalf("expected ErrOutOfOrderStep, got %v", err)
	}
}
