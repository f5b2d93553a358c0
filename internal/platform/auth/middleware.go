package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	principalKey contextKey = "principal"
)

// Principal is the authenticated caller as carried in the token claims.
type Principal struct {
	Username string
	Role     string
	Branch   string
}

type Claims struct {
	jwt.RegisteredClaims
	Role   string `json:"role"`
	Branch string `json:"branch"`
}

// IssueToken signs an HS256 token for the given principal.
func IssueToken(p Principal, secret string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Role:   p.Role,
		Branch: p.Branch,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// JWTMiddleware validates the bearer token and stores the Principal in the
// request context. The token's branch claim is also exposed on the echo
// context so the branch middleware can pick it up.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			p := Principal{
				Username: claims.Subject,
				Role:     claims.Role,
				Branch:   claims.Branch,
			}

			c.Set("jwt_branch", p.Branch)
			ctx := context.WithValue(c.Request().Context(), principalKey, p)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that gives
// unauthenticated requests an admin principal on the default branch.
func DevAuthMiddleware(secret, defaultBranch string) echo.MiddlewareFunc {
	jwtmw := JWTMiddleware(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withJWT := jwtmw(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				p := Principal{Username: "dev-user", Role: "admin", Branch: defaultBranch}
				c.Set("jwt_branch", p.Branch)
				ctx := context.WithValue(c.Request().Context(), principalKey, p)
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			}
			// A provided token is still validated.
			return withJWT(c)
		}
	}
}

// FromContext retrieves the authenticated principal, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithPrincipal returns a context carrying the given principal. Used by
// tests and by the dev middleware.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
