package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/clubledger-backend/pkg/redis"
)

const saleCounterTTL = 48 * time.Hour

// Sequence hands out the per-day ordinal used in sale codes. repo is bound to
// the sale transaction.
type Sequence interface {
	Next(ctx context.Context, repo *Repository, day string) (int64, error)
}

type counterSequence struct {
	store redis.CounterStore
}

// NewCounterSequence numbers sales from a daily redis counter.
func NewCounterSequence(store redis.CounterStore) Sequence {
	return counterSequence{store: store}
}

func (s counterSequence) Next(ctx context.Context, _ *Repository, day string) (int64, error) {
	return s.store.IncrWithTTL(ctx, s.store.CounterKey("sale_code:"+day), saleCounterTTL)
}

type tableSequence struct{}

// NewTableSequence numbers sales from the sales table when redis is absent.
// Racing writers may draw the same number; the collision check retries them.
func NewTableSequence() Sequence {
	return tableSequence{}
}

func (tableSequence) Next(ctx context.Context, repo *Repository, day string) (int64, error) {
	n, err := repo.CountWithCodePrefix(ctx, codePrefix(day))
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func codeDay(t time.Time) string {
	return t.Format("20060102")
}

func codePrefix(day string) string {
	return "V" + day + "-"
}

// formatCode renders V{YYYYMMDD}-{NNNNNN}; ordinals wrap at one million.
func formatCode(day string, n int64) string {
	return fmt.Sprintf("%s%06d", codePrefix(day), n%1_000_000)
}
