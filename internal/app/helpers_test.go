package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	repository "github.com/okian/commission/internal/adapters/repository"
	service "github.com/okian/commission/internal/app"
	"github.com/okian/commission/internal/domain/audit"
	"github.com/okian/commission/internal/domain/rule"
	"github.com/okian/commission/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	alice = audit.Actor{ID: "u-alice", Name: "Alice"}
	bob   = audit.Actor{ID: "u-bob", Name: "Bob"}
)

var errStoreDown = errors.New("store down")

// flakyStore fails every Save while failing is set.
type flakyStore struct {
	*repository.MemoryStore
	failing atomic.Bool
	saves   atomic.Int64
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: repository.NewMemoryStore()}
}

func (f *flakyStore) Save(ctx context.Context, batch repository.Batch) error {
	f.saves.Add(1)
	if f.failing.Load() {
		return fmt.Errorf("%w: %w", repository.ErrPersist, errStoreDown)
	}
	return f.MemoryStore.Save(ctx, batch)
}

// stepClock advances one second on every call.
func stepClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func counterIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func started(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogger(logger.Nop()),
		service.WithClock(stepClock()),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dp(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

func flatRule(amount int64) rule.Rule {
	return rule.Rule{Name: "Flat bonus", Kind: rule.KindFlat, IsActive: true, Amount: d(amount)}
}

func percentRule(rate int64) rule.Rule {
	return rule.Rule{Name: "Standard", Kind: rule.KindPercentage, IsActive: true, Rate: d(rate)}
}

func tieredRule() rule.Rule {
	return rule.Rule{
		Name:     "Tiered",
		Kind:     rule.KindTiered,
		IsActive: true,
		Tiers: []rule.Tier{
			{MinAmount: d(0), MaxAmount: dp(50000), Rate: d(3), IsPercentage: true},
			{MinAmount: d(50000), MaxAmount: dp(100000), Rate: d(5), IsPercentage: true},
			{MinAmount: d(100000), Rate: d(7), IsPercentage: true},
		},
	}
}
