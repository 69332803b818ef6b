package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/valtbridge/bridge-service/liquidity"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const (
	subjectKey          = "auth_subject"
	webhookSecretHeader = "X-Webhook-Secret"
	tokenIssuer         = "valt-bridge"
)

// Authenticator issues and checks the HS256 bearer tokens of the API. The token
// subject is either an LP wallet address or the admin.
type Authenticator struct {
	secret        []byte
	webhookSecret string
}

// NewAuthenticator creates an authenticator. An empty secret rejects every token.
func NewAuthenticator(secret, webhookSecret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), webhookSecret: webhookSecret}
}

// NewToken signs a token for subject valid for ttl
func (a *Authenticator) NewToken(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Subject validates a token and returns its subject
func (a *Authenticator) Subject(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", gerror.ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", gerror.ErrUnauthorized, err)
	}
	if claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: token has no expiry", gerror.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", gerror.ErrUnauthorized)
	}
	return claims.Subject, nil
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// RequireAuth rejects requests without a valid bearer token and stores its subject
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		subject, err := a.Subject(token)
		if err != nil {
			log.Warnf("rejected token on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

// RequireAdmin only lets admin tokens through. When allowWebhook is set the
// shared webhook secret is accepted too.
func (a *Authenticator) RequireAdmin(allowWebhook bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowWebhook && a.webhookSecret != "" {
			got := c.GetHeader(webhookSecretHeader)
			if got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(a.webhookSecret)) == 1 {
				c.Set(subjectKey, liquidity.AdminClaimant)
				c.Next()
				return
			}
		}
		subject, err := a.Subject(bearerToken(c))
		if err != nil || subject != liquidity.AdminClaimant {
			abort(c, http.StatusUnauthorized, "admin token required")
			return
		}
		c.Set(subjectKey, subject)
		c.Next()
	}
}

func subjectOf(c *gin.Context) string {
	return c.GetString(subjectKey)
}
