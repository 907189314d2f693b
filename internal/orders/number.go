package orders

import (
	"fmt"
	"math/rand"
	"time"
)

const maxNumberAttempts = 10

// NumberGenerator drafts business-facing order numbers: SL + YYMMDD + 4 random digits.
// Uniqueness is enforced by orders_order_number_key, not here.
type NumberGenerator struct {
	Now  func() time.Time
	Rand func(n int) int
}

func (g NumberGenerator) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	rnd := rand.Intn
	if g.Rand != nil {
		rnd = g.Rand
	}
	return fmt.Sprintf("SL%s%04d", now().UTC().Format("060102"), rnd(10000))
}
