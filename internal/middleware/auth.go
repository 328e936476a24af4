package middleware

import (
	"errors"
	"net/http"
	"strings"

	"taskelio/internal/config"
	"taskelio/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by Auth.
const (
	ContextOwnerID = "owner_id"
	ContextEmail   = "email"
	ContextRoles   = "roles"
)

// Claims issued by the hosted auth backend. Subject is the owner id.
type Claims struct {
	Email string      `json:"email,omitempty"`
	Role  string      `json:"role,omitempty"`
	Roles interface{} `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

var errMissingToken = errors.New("missing bearer token")

// ParseToken verifies an HS256 token and returns its claims.
func ParseToken(raw, secret, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket upgrades, so the access_token query parameter is accepted there.
func bearerToken(c *gin.Context) (string, error) {
	ah := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		if tok := strings.TrimSpace(ah[len("Bearer "):]); tok != "" {
			return tok, nil
		}
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if tok := c.Query("access_token"); tok != "" {
			return tok, nil
		}
	}
	return "", errMissingToken
}

// Auth enforces a bearer JWT and binds the request to its owner.
func Auth(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}
		if cfg.Secret == "" {
			unauthorized(c, "invalid token or server misconfig")
			return
		}
		claims, err := ParseToken(token, cfg.Secret, cfg.Issuer)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		c.Set(ContextOwnerID, claims.Subject)
		if claims.Email != "" {
			c.Set(ContextEmail, claims.Email)
		}
		roles := normalizeStringList(claims.Roles)
		if claims.Role != "" {
			roles = append(roles, claims.Role)
		}
		if len(roles) > 0 {
			c.Set(ContextRoles, roles)
		}
		c.Request = c.Request.WithContext(store.WithOwner(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "Unauthorized",
		"message": msg,
	})
}

func normalizeStringList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		var out []string
		for _, it := range t {
			if s, ok := it.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		var out []string
		for _, p := range strings.Split(t, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
