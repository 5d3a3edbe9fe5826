package utils

import "testing"

func TestGenerateOTPIsSixDigits(t *testing.T) {
	for i := 0; i < 20; i++ {
		code := GenerateOTP()
		if len(code) != 6 {
			t.Fatalf("expected a 6 digit code, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected digits only, got %q", code)
			}
		}
	}
}

func TestHashRoundTrip(t *testing.T) {
	hash, err := GenerateHashValue("482913")
	if err != nil {
		t.Fatalf("hash value: %v", err)
	}
	if hash == "482913" {
		t.Fatal("hash must not equal the original value")
	}

	if err := VerifyHashValue("482913", hash); err != nil {
		t.Fatalf("expected the original value to verify: %v", err)
	}
	if err := VerifyHashValue("000000", hash); err == nil {
		t.Fatal("expected a wrong value to fail verification")
	}
}
