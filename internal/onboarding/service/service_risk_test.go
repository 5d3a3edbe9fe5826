package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/risk"
	"github.com/shopspring/decimal"
)

var issuedAccountPattern = regexp.MustCompile(`^\d{4} \d{4} \d{4}$`)

func TestEvaluateRiskApprovesCleanApplicant(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := startSession(t, env)
	advanceToOtpVerified(t, env, sess.ID)

	updated, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("EvaluateRisk() error = %v", err)
	}

	if updated.Status != domain.StatusApproved {
		t.Fatalf("expected Approved, got %s", updated.Status)
	}
	if updated.Risk == nil || updated.Risk.Level != domain.RiskLow {
		t.Fatalf("expected Low risk, got %+v", updated.Risk)
	}
	if !issuedAccountPattern.MatchString(updated.Risk.AccountNumber) {
		t.Fatalf("expected an issued account number, got %q", updated.Risk.AccountNumber)
	}
	if updated.Risk.RoutingCode != risk.RoutingCode {
		t.Fatalf("expected routing code %s, got %s", risk.RoutingCode, updated.Risk.RoutingCode)
	}
	if !updated.Risk.Balance.Equal(decimal.Zero) {
		t.Fatalf("expected zero opening balance, got %s", updated.Risk.Balance)
	}
	if len(env.notifier.decisions) != 1 || env.notifier.decisions[0] != domain.StatusApproved {
		t.Fatalf("expected one approval notice, got %v", env.notifier.decisions)
	}
	if !env.auditor.has("risk.evaluated") {
		t.Fatal("expected risk audit event")
	}
}

func TestEvaluateRiskMediumStillApproves(t *testing.T) {
	scorer := &scorerStub{out: risk.Outcome{
		Level:   domain.RiskMedium,
		Score:   decimal.NewFromInt(55),
		Reasons: []string{"document confidence below threshold"},
	}}
	env := newTestEnv(scorer)
	sess := startSession(t, env)
	advanceToOtpVerified(t, env, sess.ID)

	updated, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("EvaluateRisk() error = %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Fatalf("Medium must still open an account, got %s", updated.Status)
	}
	if updated.Risk.AccountNumber == "" {
		t.Fatal("expected an account number for a Medium outcome")
	}
}

func TestEvaluateRiskHighEscalatesWithoutAccount(t *testing.T) {
	scorer := &scorerStub{out: risk.Outcome{
		Level:   domain.RiskHigh,
		Score:   decimal.NewFromInt(20),
		Reasons: []string{"document shows possible tampering"},
	}}
	env := newTestEnv(scorer)
	sess := startSession(t, env)
	advanceToOtpVerified(t, env, sess.ID)

	updated, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("EvaluateRisk() error = %v", err)
	}

	if updated.Status != domain.StatusEscalated {
		t.Fatalf("expected Escalated, got %s", updated.Status)
	}
	if updated.Risk.AccountNumber != "" || updated.Risk.RoutingCode != "" {
		t.Fatalf("escalated sessions must not hold an account, got %q / %q",
			updated.Risk.AccountNumber, updated.Risk.RoutingCode)
	}
	if len(env.notifier.decisions) != 1 || env.notifier.decisions[0] != domain.StatusEscalated {
		t.Fatalf("expected one escalation notice, got %v", env.notifier.decisions)
	}
}

func TestEvaluateRiskBeforeOtpVerification(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := startSession(t, env)
	mustApply(t, env, sess.ID, identityPayload())
	mustApply(t, env, sess.ID, documentPayload())

	_, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if !errors.Is(err, domain.ErrPrerequisiteNotMet) {
		t.Fatalf("expected ErrPrerequisiteNotMet, got %v", err)
	}

	stored, _ := env.repo.GetSession(context.Background(), sess.ID)
	if stored.Status != domain.StatusDocumentUploaded {
		t.Fatalf("refused evaluation must leave status, got %s", stored.Status)
	}
	if stored.Risk != nil {
		t.Fatal("refused evaluation must not store a risk record")
	}
}

func TestEvaluateRiskTerminalIsIdempotent(t *testing.T) {
	scorer := &scorerStub{out: risk.Outcome{
		Level:   domain.RiskLow,
		Score:   decimal.NewFromInt(95),
		Reasons: []string{"all signals within normal range"},
	}}
	env := newTestEnv(scorer)
	sess := startSession(t, env)
	advanceToOtpVerified(t, env, sess.ID)

	first, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("EvaluateRisk() error = %v", err)
	}
	second, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("second EvaluateRisk() error = %v", err)
	}

	if second.Status != first.Status {
		t.Fatalf("expected stable outcome, got %s then %s", first.Status, second.Status)
	}
	if second.Risk.AccountNumber != first.Risk.AccountNumber {
		t.Fatal("re-invocation must not mint a new account")
	}
	if scorer.calls != 1 {
		t.Fatalf("terminal session must not be re-scored, got %d calls", scorer.calls)
	}
	if len(env.notifier.decisions) != 1 {
		t.Fatalf("decision notice must not repeat, got %d", len(env.notifier.decisions))
	}
}

func TestEvaluateRiskResumesStrandedIssuance(t *testing.T) {
	scorer := &scorerStub{}
	env := newTestEnv(scorer)
	sess := startSession(t, env)

	// A crash between scoring and issuance leaves the session at
	// RiskEvaluated with the level stored and no account
	stored := env.repo.sessions[sess.ID]
	stored.Status = domain.StatusRiskEvaluated
	stored.Risk = &domain.Risk{
		Level:   domain.RiskLow,
		Score:   decimal.NewFromInt(88),
		Reasons: []string{"all signals within normal range"},
		Balance: decimal.Zero,
	}

	updated, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("EvaluateRisk() error = %v", err)
	}

	if updated.Status != domain.StatusApproved {
		t.Fatalf("expected resumed issuance to approve, got %s", updated.Status)
	}
	if !issuedAccountPattern.MatchString(updated.Risk.AccountNumber) {
		t.Fatalf("expected an issued account, got %q", updated.Risk.AccountNumber)
	}
	if scorer.calls != 0 {
		t.Fatalf("resume must reuse the stored score, got %d scorer calls", scorer.calls)
	}
}

func TestEvaluateRiskRetriesAccountCollision(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := startSession(t, env)
	advanceToOtpVerified(t, env, sess.ID)

	env.repo.duplicateFails = 1
	callsBefore := env.repo.updateCalls

	updated, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("EvaluateRisk() error = %v", err)
	}
	if updated.Status != domain.StatusApproved {
		t.Fatalf("expected approval after retry, got %s", updated.Status)
	}
	if env.repo.updateCalls != callsBefore+2 {
		t.Fatalf("expected one retry, got %d update calls", env.repo.updateCalls-callsBefore)
	}
}

func TestEvaluateRiskUnknownSession(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())

	if _, err := env.svc.EvaluateRisk(context.Background(), "MRD-DEADBEEF"); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
	if _, err := env.svc.EvaluateRisk(context.Background(), domain.NewOfflineSessionID()); !errors.Is(err, domain.ErrUnknownSession) {
		t.Fatalf("expected offline rejection, got %v", err)
	}
}

func TestAccountSummary(t *testing.T) {
	env := newTestEnv(risk.NewWeightedScorer())
	sess := startSession(t, env)
	advanceToOtpVerified(t, env, sess.ID)

	if _, err := env.svc.AccountSummary(context.Background(), sess.ID); !errors.Is(err, domain.ErrPrerequisiteNotMet) {
		t.Fatalf("expected summary refusal before approval, got %v", err)
	}

	approved, err := env.svc.EvaluateRisk(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("EvaluateRisk() error = %v", err)
	}

	summary, err := env.svc.AccountSummary(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("AccountSummary() error = %v", err)
	}
	if summary.AccountNumber != approved.Risk.AccountNumber {
		t.Fatalf("summary account %q does not match issued %q", summary.AccountNumber, approved.Risk.AccountNumber)
	}
	if summary.HolderName != "Asha Rao" {
		t.Fatalf("expected holder name from identity, got %q", summary.HolderName)
	}
	if summary.RoutingCode != risk.RoutingCode {
		t.Fatalf("unexpected routing code %q", summary.RoutingCode)
	}
}
