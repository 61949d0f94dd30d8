package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func routeSet(r *gin.Engine) func(string) bool {
	routes := r.Routes()
	return func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}
}

func TestRegisterCreditRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/credits")
	RegisterCreditRoutes(g, nil)

	contains := routeSet(r)
	require.True(t, contains("GET /api/v1/credits/balance"))
	require.True(t, contains("POST /api/v1/credits/check"))
	require.True(t, contains("POST /api/v1/credits/deduct"))
	require.True(t, contains("GET /api/v1/credits/history"))
}

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/admin")
	RegisterAdminRoutes(g, nil, nil, nil)

	contains := routeSet(r)
	require.True(t, contains("POST /api/v1/admin/list_credit_transactions"))
	require.True(t, contains("POST /api/v1/admin/get_credit_statistic"))
	require.True(t, contains("POST /api/v1/admin/grant_topup"))
	require.True(t, contains("POST /api/v1/admin/grant_retention_bonus"))
	require.True(t, contains("POST /api/v1/admin/recalculate_cap"))
}

func TestRegisterWebhookRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/webhooks")
	RegisterWebhookRoutes(g, nil, nil)

	contains := routeSet(r)
	require.True(t, contains("POST /api/v1/webhooks/stripe"))
}
