package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/creditledger/pkg/types"
)

func catalogFixture() *Config {
	return &Config{
		Plans: []*types.PlanItem{
			{AppKey: "scribe", Tier: "starter", StripePriceID: "price_scribe_starter", MonthlyCredits: 300, CreditCap: 900},
			{AppKey: "scribe", Tier: "pro", StripePriceID: "price_scribe_pro", MonthlyCredits: 1200, CreditCap: 3600},
			{AppKey: "render", Tier: "pro", StripePriceID: "price_render_pro", MonthlyCredits: 600, CreditCap: 1800},
		},
		TopupPacks: []*types.TopupPack{
			{Name: "small", StripePriceID: "price_pack_small", Credits: 500},
		},
		OperationCosts: []*types.OperationCost{
			{AppKey: "scribe", Operation: "transcribe", Cost: 10},
			{AppKey: "render", Operation: "export", Cost: 25},
		},
	}
}

func TestResolvePlan_Order(t *testing.T) {
	cfg := catalogFixture()

	tests := []struct {
		name     string
		appKey   string
		priceID  string
		wantTier string
		wantNil  bool
	}{
		{name: "price id exact match wins", appKey: "scribe", priceID: "price_scribe_pro", wantTier: "pro"},
		{name: "price id match ignores app key", appKey: "render", priceID: "price_scribe_starter", wantTier: "starter"},
		{name: "unknown price falls back to first app match", appKey: "scribe", priceID: "price_gone", wantTier: "starter"},
		{name: "app key only", appKey: "render", priceID: "", wantTier: "pro"},
		{name: "nothing matches", appKey: "ghost", priceID: "price_gone", wantNil: true},
		{name: "empty lookup", appKey: "", priceID: "", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cfg.ResolvePlan(tt.appKey, tt.priceID)
			if tt.wantNil {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.wantTier, p.Tier)
		})
	}
}

func TestGetOperationCost(t *testing.T) {
	cfg := catalogFixture()

	cost, ok := cfg.GetOperationCost("scribe", "transcribe")
	require.True(t, ok)
	assert.Equal(t, int64(10), cost)

	// same operation name under a different app is a distinct entry
	_, ok = cfg.GetOperationCost("scribe", "export")
	assert.False(t, ok)

	_, ok = cfg.GetOperationCost("render", "unknown_op")
	assert.False(t, ok)
}

func TestGetTopupPackByPriceID(t *testing.T) {
	cfg := catalogFixture()

	require.NotNil(t, cfg.GetTopupPackByPriceID("price_pack_small"))
	assert.Nil(t, cfg.GetTopupPackByPriceID("price_pack_huge"))
}
