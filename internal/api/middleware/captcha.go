package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/myloveankyy/xkey-auction-sub000/internal/captcha"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
)

// ContextKeyIsHumanVerified is set to true when the client proved it is human.
const ContextKeyIsHumanVerified = "isHumanVerified"

// CaptchaMiddleware accepts either a previously issued X-C-T token or a fresh
// Turnstile challenge in X-C-V. It never rejects a request; the rate limiter uses
// the result to decide whether the soft limit applies.
func CaptchaMiddleware(cfg *config.Config, verifier captcha.ITurnstileVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		fingerprint := c.GetHeader("X-BFP")
		spaSession := c.GetHeader("X-SPA")

		isHuman := false
		if token := c.GetHeader("X-C-T"); token != "" {
			isHuman = verifier.ValidateHumanToken(token, clientIP, fingerprint, spaSession)
		}

		if challenge := c.GetHeader("X-C-V"); !isHuman && challenge != "" {
			verified, err := verifier.Verify(c.Request.Context(), challenge, clientIP)
			if err != nil {
				log.Printf("Error verifying Turnstile token for %s: %v", clientIP, err)
			} else if verified {
				isHuman = true
				uid := ""
				if id := UserID(c); !id.IsZero() {
					uid = id.String()
				}
				token, err := verifier.GenerateHumanToken(uid, clientIP, fingerprint, spaSession, cfg.CaptchaTokenTTL)
				if err != nil {
					log.Printf("Error generating X-C-T token after successful verification: %v", err)
				} else {
					c.Header("X-C-T", token)
				}
			}
		}

		c.Set(ContextKeyIsHumanVerified, isHuman)
		c.Next()
	}
}
