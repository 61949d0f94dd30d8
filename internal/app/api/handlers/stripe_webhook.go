package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/fatflowers/creditledger/internal/app/service/stripesync"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/response"
)

// Stripe payloads are small; anything larger is not a webhook.
const maxWebhookBody = 65536

// @Summary      Stripe Webhook
// @Description  Handles Stripe events. The request must carry a valid Stripe-Signature header.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        payload body string true "Stripe event payload"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/webhooks/stripe [post]
// ApiStripeWebhook verifies the signature and hands the event to the synchronizer
func ApiStripeWebhook(svc *stripesync.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromCtx(c, svc.Logger())

		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			log.Warnw("webhook_stripe_body_read_error", "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "failed to read body"))
			return
		}

		event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), cfg.Stripe.WebhookSecret)
		if err != nil {
			// unverifiable payloads get a 400 so Stripe surfaces them as
			// delivery failures instead of silently retrying forever
			log.Warnw("webhook_stripe_signature_invalid", "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid signature"))
			return
		}

		outcome, err := svc.HandleEvent(c.Request.Context(), event)
		if err != nil {
			// non-2xx so the provider redelivers
			log.Errorw("webhook_stripe_handle_error", "event_id", event.ID, "error", err.Error())
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(map[string]string{"outcome": string(outcome)}))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, svc *stripesync.Service, cfg *config.Config) {
	r.POST("/stripe", ApiStripeWebhook(svc, cfg))
}
