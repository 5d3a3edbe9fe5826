package risk

import (
	"fmt"
	"math/rand"
	"time"
)

// RoutingCode identifies the digital-onboarding branch.
const RoutingCode = "MRDT0000001"

// NewAccountNumber mints a 12-digit number in the printed "XXXX XXXX XXXX"
// grouping. Uniqueness is enforced by the account_number column constraint;
// collisions surface as duplicate-key errors and the caller retries.
func NewAccountNumber() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	groups := make([]any, 3)
	for i := range groups {
		groups[i] = fmt.Sprintf("%04d", r.Intn(10000))
	}
	return fmt.Sprintf("%s %s %s", groups...)
}
