package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ferrybook/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	actorKey = "actorID"
	roleKey  = "userRole"
)

// Claims are the bearer token claims this service reads. Subject carries the
// actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth resolves the calling actor from an HS256 bearer token. With an empty
// secret it runs in development mode and trusts X-Actor-ID / X-Actor-Role.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if secret == "" {
			actor := strings.TrimSpace(c.GetHeader("X-Actor-ID"))
			role := strings.ToLower(strings.TrimSpace(c.GetHeader("X-Actor-Role")))
			if actor == "" {
				actor = "anonymous"
			}
			if role == "" {
				role = domain.RoleCustomer
			}
			c.Set(actorKey, actor)
			c.Set(roleKey, role)
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized: bearer token required",
				"request_id": GetRequestID(c),
			})
			return
		}

		claims, err := ParseToken(key, strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized: " + err.Error(),
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Set(actorKey, claims.Subject)
		c.Set(roleKey, strings.ToLower(claims.Role))
		c.Next()
	}
}

// ParseToken validates signature, expiry and subject.
func ParseToken(key []byte, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a token for actor with role, valid for ttl.
func IssueToken(secret string, actor domain.ActorID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ActorFrom returns the actor resolved by Auth, or a zero value.
func ActorFrom(c *gin.Context) domain.RequestContext {
	return domain.RequestContext{
		Actor: domain.ActorID(c.GetString(actorKey)),
		Role:  c.GetString(roleKey),
	}
}
