package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ingest-svc/app/dto"
	"ingest-svc/app/services"

	"github.com/gin-gonic/gin"
)

// Context keys set by Auth for downstream handlers.
const (
	ContextSubject = "auth_subject"
	ContextKeyName = "auth_key_name"
)

const (
	headerAPIKey = "X-API-Key"
	bearerPrefix = "Bearer "
)

// uniform rejection; callers learn nothing about which check failed
const msgUnauthorized = "invalid or missing API key"

// Auth extracts the presented secret from X-API-Key or a bearer Authorization
// header and verifies it. Bearer values that validate as operator tokens are
// accepted without touching the credential store; everything else is compared
// against the hashed key store. Absence of both headers rejects immediately,
// before any hash comparison.
func Auth(keys *services.APIKeyService, tokens *services.TokenService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret, fromBearer := extractSecret(c)
		if secret == "" {
			reject(c)
			return
		}

		if fromBearer && tokens != nil {
			if subject, err := tokens.Validate(secret); err == nil {
				c.Set(ContextSubject, "operator:"+subject)
				c.Next()
				return
			}
		}

		key, err := keys.Verify(c.Request.Context(), secret)
		if err != nil {
			if !errors.Is(err, services.ErrInvalidCredentials) {
				logger.Error("credential verification failed",
					"method", c.Request.Method, "path", c.Request.URL.Path,
					"origin", c.ClientIP(), "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Error: "internal server error",
				})
				return
			}
			reject(c)
			return
		}

		c.Set(ContextSubject, "key:"+key.Name)
		c.Set(ContextKeyName, key.Name)
		c.Next()
	}
}

func reject(c *gin.Context) {
	authFailuresTotal.Inc()
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: msgUnauthorized})
}

func extractSecret(c *gin.Context) (secret string, fromBearer bool) {
	if v := c.GetHeader(headerAPIKey); v != "" {
		return v, false
	}
	if v := c.GetHeader("Authorization"); strings.HasPrefix(v, bearerPrefix) {
		return strings.TrimPrefix(v, bearerPrefix), true
	}
	return "", false
}
