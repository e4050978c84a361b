package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Counter hands out strictly increasing values per scope.
type Counter interface {
	Next(ctx context.Context, scope string) (int64, error)
}

// Resyncer is implemented by counters whose state lives outside the ledger.
// Resync moves the scope past every value the ledger already holds.
type Resyncer interface {
	Resync(ctx context.Context, scope string) error
}

// Floor reports the highest value already issued in scope, 0 if none.
type Floor func(ctx context.Context, scope string) (int64, error)

type CounterFunc func(ctx context.Context, scope string) (int64, error)

func (f CounterFunc) Next(ctx context.Context, scope string) (int64, error) {
	return f(ctx, scope)
}

// DayScope is the counter scope used for invoice numbers issued at t.
func DayScope(t time.Time) string {
	return t.Format("20060102")
}

// InvoiceNumber formats the n-th invoice of the day, e.g. INV-20260314-000042.
func InvoiceNumber(t time.Time, n int64) string {
	return fmt.Sprintf("%s%06d", Prefix(DayScope(t)), n)
}

// Prefix is the part shared by every invoice number of scope.
func Prefix(scope string) string {
	return "INV-" + scope + "-"
}

// ParseInvoiceNumber returns the sequence value of an invoice number issued
// in scope.
func ParseInvoiceNumber(scope string, number string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, Prefix(scope))
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
