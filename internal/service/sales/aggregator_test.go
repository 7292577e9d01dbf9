package sales_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/sales"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type lineSpec struct {
	product string
	buyer   string
	qty     int32
}

func seedLedger(t *testing.T, specs ...lineSpec) domain.Ledger {
	t.Helper()
	ledger := memory.NewLedger()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lines := make([]domain.OrderLine, 0, len(specs))
	for i, s := range specs {
		lines = append(lines, domain.OrderLine{
			ID:          fmt.Sprintf("line-%03d", i),
			ProductID:   s.product,
			BuyerID:     s.buyer,
			Quantity:    s.qty,
			PurchasedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, ledger.Append(context.Background(), lines...))
	return ledger
}

// scenarioLedger: A: 10 единиц от 3 покупателей (u1 купил 4 раза),
// B — 10 единиц от 5 покупателей по одному разу.
func scenarioLedger(t *testing.T) domain.Ledger {
	return seedLedger(t,
		lineSpec{"A", "u1", 1}, lineSpec{"A", "u1", 1}, lineSpec{"A", "u1", 1}, lineSpec{"A", "u1", 1},
		lineSpec{"A", "u2", 3}, lineSpec{"A", "u3", 3},
		lineSpec{"B", "b1", 2}, lineSpec{"B", "b2", 2}, lineSpec{"B", "b3", 2}, lineSpec{"B", "b4", 2}, lineSpec{"B", "b5", 2},
	)
}

func TestRank_ScenarioTieBreak(t *testing.T) {
	agg := sales.NewAggregator(scenarioLedger(t), nil, nil)

	ids, err := agg.Rank(context.Background(), domain.AllProducts(), 2)
	require.NoError(t, err)
	// Равные продажи: порядок по возрастанию ProductID.
	require.Equal(t, []string{"A", "B"}, ids)
}

func TestRank_DescendingAndTruncated(t *testing.T) {
	ledger := seedLedger(t,
		lineSpec{"p1", "u1", 1},
		lineSpec{"p2", "u1", 5},
		lineSpec{"p3", "u2", 3},
		lineSpec{"p2", "u3", 1},
		lineSpec{"p4", "u1", 2},
	)
	agg := sales.NewAggregator(ledger, nil, nil)

	ids, err := agg.Rank(context.Background(), domain.AllProducts(), 3)
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p3", "p4"}, ids)
}

func TestRank_FewerThanTopN(t *testing.T) {
	ledger := seedLedger(t, lineSpec{"p1", "u1", 1}, lineSpec{"p2", "u1", 2})
	agg := sales.NewAggregator(ledger, nil, nil)

	ids, err := agg.Rank(context.Background(), domain.AllProducts(), 8)
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p1"}, ids)
}

func TestRank_EmptyInputs(t *testing.T) {
	ctx := context.Background()

	empty := sales.NewAggregator(memory.NewLedger(), nil, nil)
	ids, err := empty.Rank(ctx, domain.AllProducts(), 5)
	require.NoError(t, err)
	require.Empty(t, ids)

	agg := sales.NewAggregator(scenarioLedger(t), nil, nil)
	ids, err = agg.Rank(ctx, domain.RestrictTo(), 5)
	require.NoError(t, err)
	require.NotNil(t, ids)
	require.Empty(t, ids)
}

func TestRank_RestrictedScopeIsSubset(t *testing.T) {
	ledger := seedLedger(t,
		lineSpec{"p1", "u1", 9},
		lineSpec{"p2", "u1", 5},
		lineSpec{"p3", "u2", 3},
	)
	agg := sales.NewAggregator(ledger, nil, nil)

	ids, err := agg.Rank(context.Background(), domain.RestrictTo("p3", "p2", "unknown"), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p3"}, ids)
}

func TestRank_InvalidTopN(t *testing.T) {
	agg := sales.NewAggregator(memory.NewLedger(), nil, nil)

	for _, topN := range []int{0, -1} {
		_, err := agg.Rank(context.Background(), domain.AllProducts(), topN)
		require.ErrorIs(t, err, domain.ErrInvalidTopN)
		require.True(t, domain.IsValidation(err))
	}
}

func TestRank_LedgerFailureIsSurfaced(t *testing.T) {
	boom := errors.New("connection reset")
	agg := sales.NewAggregator(failingLedger{err: boom}, nil, nil)

	_, err := agg.Rank(context.Background(), domain.AllProducts(), 3)
	require.ErrorIs(t, err, boom)
	require.False(t, domain.IsValidation(err))
}

// Свойство: результат не длиннее topN, отсортирован по убыванию и совпадает
// с независимым пересчётом суммы quantity.
func TestRank_PropertyMatchesIndependentRecount(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for iteration := 0; iteration < 50; iteration++ {
		specs := make([]lineSpec, 0, 60)
		expected := make(map[string]int64)
		for i := 0; i < 1+rng.Intn(60); i++ {
			s := lineSpec{
				product: fmt.Sprintf("p%d", rng.Intn(12)),
				buyer:   fmt.Sprintf("u%d", rng.Intn(5)),
				qty:     int32(1 + rng.Intn(4)),
			}
			expected[s.product] += int64(s.qty)
			specs = append(specs, s)
		}
		agg := sales.NewAggregator(seedLedger(t, specs...), nil, nil)
		topN := 1 + rng.Intn(10)

		counts, err := agg.Counts(ctx, domain.AllProducts())
		require.NoError(t, err)
		require.Len(t, counts, len(expected))
		for i, c := range counts {
			require.Equal(t, expected[c.ProductID], c.TotalUnits)
			if i > 0 {
				require.GreaterOrEqual(t, counts[i-1].TotalUnits, c.TotalUnits)
			}
		}

		first, err := agg.Rank(ctx, domain.AllProducts(), topN)
		require.NoError(t, err)
		require.LessOrEqual(t, len(first), topN)

		second, err := agg.Rank(ctx, domain.AllProducts(), topN)
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}

func TestSortCounts(t *testing.T) {
	counts := []domain.SalesCount{
		{ProductID: "c", TotalUnits: 1},
		{ProductID: "b", TotalUnits: 7},
		{ProductID: "a", TotalUnits: 1},
		{ProductID: "d", TotalUnits: 7},
	}
	sales.SortCounts(counts)

	got := make([]string, 0, len(counts))
	for _, c := range counts {
		got = append(got, c.ProductID)
	}
	require.Equal(t, []string{"b", "d", "a", "c"}, got)
}

type failingLedger struct {
	err error
}

func (f failingLedger) LinesFor(context.Context, domain.Scope) ([]domain.OrderLine, error) {
	return nil, f.err
}
