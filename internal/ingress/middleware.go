package ingress

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"outreach_backend/platform/config"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "X-Webhook-Signature"
	rawBodyKey      = "webhookRawBody"
)

// SignatureRequired verifies the provider's HMAC-SHA256 signature over the
// raw request body and stashes the body for the handler. The signature
// covers the exact bytes sent, so the body must be read before any JSON
// binding touches it.
func SignatureRequired(cfg config.ChannelConfig) gin.HandlerFunc {
	secret := []byte(cfg.GetChannelWebhookSecret())

	return func(c *gin.Context) {
		signature := c.GetHeader(signatureHeader)
		if signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing webhook signature"})
			return
		}

		provided, err := hex.DecodeString(signature)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed webhook signature"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		mac := hmac.New(sha256.New, secret)
		mac.Write(body)
		if !hmac.Equal(provided, mac.Sum(nil)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return
		}

		c.Set(rawBodyKey, body)
		c.Next()
	}
}
