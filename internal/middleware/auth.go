package middleware

import (
	"fmt"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	apperrors "github.com/brocantia/collector/pkg/errors"
	"github.com/brocantia/collector/pkg/logger"
	"github.com/brocantia/collector/pkg/response"
)

// Authenticator verifies RS256 bearer tokens against the identity
// provider's JWKS. The verified subject is the sole authorization
// input; role lookups happen afterwards in RequireRole.
type Authenticator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
}

func NewAuthenticator(domain, audience string) (*Authenticator, error) {
	issuer := fmt.Sprintf("https://%s/", domain)
	jwks, err := keyfunc.Get(issuer+".well-known/jwks.json", keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("jwks refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not load JWKS: %w", err)
	}
	return &Authenticator{jwks: jwks, issuer: issuer, audience: audience}, nil
}

// Require rejects requests without a valid bearer token and stores the
// token subject under "auth_sub".
func (a *Authenticator) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return response.Error(c, apperrors.Unauthorized("authorization header is required"))
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return response.Error(c, apperrors.Unauthorized("invalid authorization format"))
		}

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(parts[1], &claims, a.jwks.Keyfunc,
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithIssuer(a.issuer),
			jwt.WithAudience(a.audience),
		)
		if err != nil || !token.Valid {
			return response.Error(c, apperrors.Unauthorized("invalid or expired token"))
		}
		if claims.Subject == "" {
			return response.Error(c, apperrors.Unauthorized("token has no subject"))
		}

		c.Set("auth_sub", claims.Subject)
		return next(c)
	}
}
