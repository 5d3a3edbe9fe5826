package risk

import (
	"regexp"
	"testing"
)

var accountNumberPattern = regexp.MustCompile(`^\d{4} \d{4} \d{4}$`)

func TestNewAccountNumberFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		n := NewAccountNumber()
		if !accountNumberPattern.MatchString(n) {
			t.Fatalf("account number %q does not match the printed grouping", n)
		}
	}
}

func TestRoutingCode(t *testing.T) {
	if RoutingCode != "MRDT0000001" {
		t.Fatalf("unexpected routing code %q", RoutingCode)
	}
}
