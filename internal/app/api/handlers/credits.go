package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/pkg/response"
)

type deductCreditsRequest struct {
	UserID      string  `json:"user_id"`
	AppKey      string  `json:"app_key"`
	Operation   string  `json:"operation"`
	ReferenceID *string `json:"reference_id"`
}

type checkCreditsRequest struct {
	UserID    string `json:"user_id"`
	AppKey    string `json:"app_key"`
	Operation string `json:"operation"`
}

// @Summary      Get Credit Balance
// @Description  Returns the caller's balance across all three pools, with expired trial credits reported as zero.
// @Tags         Credits
// @Produce      json
// @Param        user_id query string true "User ID"
// @Success      200  {object}  handlers.RespCreditBalance
// @Router       /api/v1/credits/balance [get]
func ApiGetBalance(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		bal, err := svc.GetBalance(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(bal))
	}
}

// @Summary      Check Credits
// @Description  Reports whether the user can afford one operation without charging anything.
// @Tags         Credits
// @Accept       json
// @Produce      json
// @Param        request body checkCreditsRequest true "Check credits request"
// @Success      200  {object}  handlers.RespCheckCredits
// @Router       /api/v1/credits/check [post]
func ApiCheckCredits(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkCreditsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserID == "" || req.AppKey == "" || req.Operation == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or app_key or operation"))
			return
		}
		res, err := svc.CheckCredits(c.Request.Context(), req.UserID, req.AppKey, req.Operation)
		if err != nil {
			if errors.Is(err, ledger.ErrUnknownOperation) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Deduct Credits
// @Description  Charges one operation's cost, draining trial then top-up then subscription credits.
// @Tags         Credits
// @Accept       json
// @Produce      json
// @Param        request body deductCreditsRequest true "Deduct credits request"
// @Success      200  {object}  handlers.RespDeductCredits
// @Router       /api/v1/credits/deduct [post]
func ApiDeductCredits(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deductCreditsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.UserID == "" || req.AppKey == "" || req.Operation == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id or app_key or operation"))
			return
		}
		res, err := svc.DeductCredits(c.Request.Context(), req.UserID, req.AppKey, req.Operation, req.ReferenceID)
		if err != nil {
			var insufficient *ledger.InsufficientCreditsError
			if errors.As(err, &insufficient) {
				c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeBadRequest, insufficientCreditsData{
					Required:  insufficient.Required,
					Available: insufficient.Available,
				}))
				return
			}
			if errors.Is(err, ledger.ErrUnknownOperation) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type insufficientCreditsData struct {
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

// @Summary      Get Usage History
// @Description  Returns the user's ledger entries, newest first.
// @Tags         Credits
// @Produce      json
// @Param        user_id query string true  "User ID"
// @Param        limit   query int    false "Page size, capped at 100"
// @Param        offset  query int    false "Offset"
// @Success      200  {object}  handlers.RespUsageHistory
// @Router       /api/v1/credits/history [get]
func ApiGetUsageHistory(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user_id"))
			return
		}
		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid limit"))
				return
			}
			limit = n
		}
		offset := 0
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		page, err := svc.GetUsageHistory(c.Request.Context(), userID, limit, offset)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(page))
	}
}

func RegisterCreditRoutes(r gin.IRouter, svc *ledger.Service) {
	r.GET("/balance", ApiGetBalance(svc))
	r.POST("/check", ApiCheckCredits(svc))
	r.POST("/deduct", ApiDeductCredits(svc))
	r.GET("/history", ApiGetUsageHistory(svc))
}
