package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestStore(t *testing.T) (*RuleStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "rules.db")
	store, err := New(Config{DBPath: dbPath, Logger: noopLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func armedRule(symbol string) *domain.ProfitTakingRule {
	return &domain.ProfitTakingRule{
		Symbol:          symbol,
		ProfitThreshold: 0.2,
		ClosePercentage: 0.5,
		State:           domain.RuleArmed,
	}
}

func TestRuleStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Create(ctx, armedRule("AAPL")))

	rule, err := store.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "AAPL", rule.Symbol)
	assert.Equal(t, 0.2, rule.ProfitThreshold)
	assert.Equal(t, 0.5, rule.ClosePercentage)
	assert.Equal(t, domain.RuleArmed, rule.State)
	assert.False(t, rule.CreatedAt.IsZero())

	missing, err := store.Get(ctx, "TSLA")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRuleStore_CreateConflict(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Create(ctx, armedRule("AAPL")))
	assert.ErrorIs(t, store.Create(ctx, armedRule("AAPL")), ports.ErrRuleExists)

	require.NoError(t, store.Transition(ctx, "AAPL", domain.RuleArmed, domain.RuleFired))
	assert.NoError(t, store.Create(ctx, armedRule("AAPL")), "a terminal rule is overwritten")
}

func TestRuleStore_CreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// Many racers, exactly one arms the symbol; the rest see the conflict.
	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan float64, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(threshold float64) {
			defer wg.Done()
			rule := armedRule("AAPL")
			rule.ProfitThreshold = threshold
			switch err := store.Create(ctx, rule); {
			case err == nil:
				wins <- threshold
			default:
				assert.ErrorIs(t, err, ports.ErrRuleExists)
			}
		}(0.1 + float64(i))
	}
	wg.Wait()
	close(wins)

	var winners []float64
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1, "guarded upsert admits exactly one winner")

	rule, err := store.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, winners[0], rule.ProfitThreshold, "the stored rule carries the winner's parameters")
}

func TestRuleStore_Transition(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Create(ctx, armedRule("AAPL")))

	assert.ErrorIs(t, store.Transition(ctx, "TSLA", domain.RuleArmed, domain.RuleFired), ports.ErrRuleNotFound)

	require.NoError(t, store.Transition(ctx, "AAPL", domain.RuleArmed, domain.RuleFired))
	rule, err := store.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, domain.RuleFired, rule.State)

	assert.ErrorIs(t, store.Transition(ctx, "AAPL", domain.RuleArmed, domain.RuleCancelled), ports.ErrRuleStateConflict)
}

func TestRuleStore_ListByState(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	require.NoError(t, store.Create(ctx, armedRule("TSLA")))
	require.NoError(t, store.Create(ctx, armedRule("AAPL")))
	require.NoError(t, store.Transition(ctx, "TSLA", domain.RuleArmed, domain.RuleCancelled))

	armed, err := store.ListByState(ctx, domain.RuleArmed)
	require.NoError(t, err)
	require.Len(t, armed, 1)
	assert.Equal(t, "AAPL", armed[0].Symbol)

	cancelled, err := store.ListByState(ctx, domain.RuleCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "TSLA", cancelled[0].Symbol)
}

func TestRuleStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, dbPath := newTestStore(t)
	require.NoError(t, store.Create(ctx, armedRule("AAPL")))
	require.NoError(t, store.Close())

	reopened, err := New(Config{DBPath: dbPath, Logger: noopLogger{}})
	require.NoError(t, err)
	defer reopened.Close()

	rule, err := reopened.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, domain.RuleArmed, rule.State, "armed rules survive a restart")
}
