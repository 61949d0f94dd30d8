package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/store/memstore"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/types"
)

func newCreditsRouter(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memstore.New()
	cfg := &config.Config{
		OperationCosts: []*types.OperationCost{
			{AppKey: "scribe", Operation: "transcribe", Cost: 10},
		},
	}
	svc := ledger.NewService(cfg, zap.NewNop().Sugar(), st)
	r := gin.New()
	RegisterCreditRoutes(r.Group("/api/v1/credits"), svc)
	return r, st
}

func TestApiDeductCredits_DrainsBalance(t *testing.T) {
	r, st := newCreditsRouter(t)

	_, err := st.UpdateAccount(context.Background(), "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.TopupBalance = 25
		return nil, nil
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"user_id": "u1", "app_key": "scribe", "operation": "transcribe"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/deduct", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int `json:"code"`
		Data struct {
			NewBalance    *types.CreditBalance `json:"new_balance"`
			TransactionID string               `json:"transaction_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Zero(t, resp.Code)
	require.Equal(t, int64(15), resp.Data.NewBalance.TopupBalance)
	require.NotEmpty(t, resp.Data.TransactionID)
}

func TestApiDeductCredits_InsufficientReportsAmounts(t *testing.T) {
	r, st := newCreditsRouter(t)

	_, err := st.UpdateAccount(context.Background(), "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.TopupBalance = 3
		return nil, nil
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"user_id": "u1", "app_key": "scribe", "operation": "transcribe"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/deduct", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"required":10`)
	require.Contains(t, w.Body.String(), `"available":3`)
}

func TestApiGetBalance_MissingUserID(t *testing.T) {
	r, _ := newCreditsRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "missing user_id")
}

func TestApiGetBalance_ReturnsPools(t *testing.T) {
	r, st := newCreditsRouter(t)

	_, err := st.UpdateAccount(context.Background(), "u1", func(a *models.CreditAccount) ([]*models.CreditTransaction, error) {
		a.SubscriptionBalance = 200
		a.TopupBalance = 50
		return nil, nil
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits/balance?user_id=u1", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data types.CreditBalance `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(200), resp.Data.SubscriptionBalance)
	require.Equal(t, int64(250), resp.Data.Total)
}
