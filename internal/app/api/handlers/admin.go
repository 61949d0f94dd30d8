package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	subsvc "github.com/fatflowers/creditledger/internal/app/service/subscription"
	"github.com/fatflowers/creditledger/pkg/response"
	"github.com/fatflowers/creditledger/pkg/types"
)

type ListLedgerEntriesRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// @Summary      List Ledger Entries (Admin)
// @Description  Retrieves a paginated and filterable list of credit transactions across all users.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListLedgerEntriesRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListLedgerEntries
// @Router       /api/v1/admin/list_credit_transactions [post]
func ApiListLedgerEntries(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListLedgerEntriesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		scanReq := &statistics.ScanLedgerEntriesRequest{Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder}
		res, err := stats.ScanLedgerEntries(c.Request.Context(), scanReq)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Credit Statistics (Admin)
// @Description  Retrieves daily usage, grant, and subscription statistics.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.CreditStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespCreditStatistic
// @Router       /api/v1/admin/get_credit_statistic [post]
func ApiGetCreditStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.CreditStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetCreditStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Grant Top-Up Credits (Admin)
// @Description  Credits a user's top-up pool outside of a Stripe purchase, for support cases.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.GrantTopupRequest true "Grant top-up request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/grant_topup [post]
func ApiGrantTopup(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantTopupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserID == "" || req.Credits <= 0 || req.OperatorID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or credits or operator_id"))
			return
		}
		res, err := led.AllocateTopUpCredits(c.Request.Context(), req.UserID, req.Credits, req.PackName, &req.OperatorID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Grant Retention Bonus (Admin)
// @Description  Credits a user's top-up pool as a retention incentive.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.GrantBonusRequest true "Grant bonus request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/grant_retention_bonus [post]
func ApiGrantRetentionBonus(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantBonusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserID == "" || req.Credits <= 0 {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or credits"))
			return
		}
		res, err := led.AllocateRetentionBonus(c.Request.Context(), req.UserID, req.Credits)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Recalculate Subscription Cap (Admin)
// @Description  Re-derives a user's subscription credit cap from their current subscriptions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.RecalculateCapRequest true "Recalculate cap request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/recalculate_cap [post]
func ApiRecalculateCap(sub *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecalculateCapRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		newCap := sub.RecalculateCap(c.Request.Context(), req.UserID)
		c.JSON(http.StatusOK, response.OKT(map[string]int64{"subscription_cap": newCap}))
	}
}

type GrantTopupRequest struct {
	UserID     string `json:"user_id"`
	Credits    int64  `json:"credits"`
	PackName   string `json:"pack_name"`
	OperatorID string `json:"operator_id"`
}

type GrantBonusRequest struct {
	UserID  string `json:"user_id"`
	Credits int64  `json:"credits"`
}

type RecalculateCapRequest struct {
	UserID string `json:"user_id"`
}

func RegisterAdminRoutes(r gin.IRouter, led *ledger.Service, sub *subsvc.Service, stats *statistics.Service) {
	r.POST("/list_credit_transactions", ApiListLedgerEntries(stats))
	r.POST("/get_credit_statistic", ApiGetCreditStatistic(stats))
	r.POST("/grant_topup", ApiGrantTopup(led))
	r.POST("/grant_retention_bonus", ApiGrantRetentionBonus(led))
	r.POST("/recalculate_cap", ApiRecalculateCap(sub))
}
