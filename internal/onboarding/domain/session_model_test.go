package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMaskAccountNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "grouped", input: "4217 8805 0421", want: "#### #### 0421"},
		{name: "ungrouped", input: "421788050421", want: "########0421"},
		{name: "short", input: "0421", want: "0421"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskAccountNumber(tt.input); got != tt.want {
				t.Fatalf("MaskAccountNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestToSessionResponse(t *testing.T) {
	sess := sampleSession()
	sess.Status = StatusApproved
	sess.Risk = &Risk{
		Level:         RiskLow,
		Score:         decimal.NewFromInt(91),
		Reasons:       []string{"all signals within normal range"},
		AccountNumber: "4217 8805 0421",
		RoutingCode:   "MRDT0000001",
		Balance:       decimal.Zero,
	}

	resp := ToSessionResponse(sess)

	if resp.Status != string(StatusApproved) {
		t.Fatalf("expected status Approved, got %s", resp.Status)
	}
	if resp.NextStep != "" {
		t.Fatalf("terminal session should have no next step, got %q", resp.NextStep)
	}
	if resp.Risk.AccountNumber != "#### #### 0421" {
		t.Fatalf("expected masked account number, got %q", resp.Risk.AccountNumber)
	}

	// The code hash must never appear anywhere in the wire shape
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	if strings.Contains(string(raw), sess.OTP.CodeHash) {
		t.Fatal("serialized response leaks the OTP code hash")
	}
	if strings.Contains(string(raw), "4217 8805 0421") {
		t.Fatal("serialized response leaks the full account number")
	}
}

func TestToSessionResponseNextStep(t *testing.T) {
	sess := &OnboardingSession{ID: "MRD-11223344", Status: StatusCreated}
	resp := ToSessionResponse(sess)
	if resp.NextStep != string(StepIdentity) {
		t.Fatalf("expected next step identity, got %q", resp.NextStep)
	}
	if resp.Degraded {
		t.Fatal("durable session must not be marked degraded")
	}
}

func TestToOfflineSessionResponse(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	resp := ToOfflineSessionResponse("MRD-OFFLINE-AB12CD34", now)

	if !resp.Degraded {
		t.Fatal("offline response must be marked degraded")
	}
	if resp.Status != string(StatusCreated) {
		t.Fatalf("expected Created, got %s", resp.Status)
	}
	if resp.NextStep != string(StepIdentity) {
		t.Fatalf("expected next step identity, got %q", resp.NextStep)
	}
	if !resp.CreatedAt.Equal(now) || !resp.UpdatedAt.Equal(now) {
		t.Fatal("expected timestamps pinned to the handed-out instant")
	}
}

func TestToAccountSummaryResponse(t *testing.T) {
	sess := sampleSession()
	sess.Status = StatusApproved
	sess.Risk = &Risk{
		Level:         RiskLow,
		Score:         decimal.NewFromInt(91),
		AccountNumber: "4217 8805 0421",
		RoutingCode:   "MRDT0000001",
		Balance:       decimal.Zero,
	}

	summary := ToAccountSummaryResponse(sess)

	if summary.HolderName != "Asha Rao" {
		t.Fatalf("expected holder name from identity, got %q", summary.HolderName)
	}
	if summary.AccountNumber != "4217 8805 0421" {
		t.Fatalf("account summary carries the full number, got %q", summary.AccountNumber)
	}
	if summary.RoutingCode != "MRDT0000001" {
		t.Fatalf("unexpected routing code %q", summary.RoutingCode)
	}
}
