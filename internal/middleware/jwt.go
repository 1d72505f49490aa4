package middleware // reusable HTTP middleware for the booking API

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// GuestTokenHeader carries the access token handed out when a guest
// booking was created.
const GuestTokenHeader = "X-Guest-Token"

var errNoBearer = errors.New("missing bearer token")

// JWTAuth returns an Echo middleware that requires a valid HS256 bearer
// token.  The token's subject and role claims are stored in the context
// under "user_id" and "role", and the derived model.Caller under "caller".
// A role equal to adminRole marks the caller as an administrator.
func JWTAuth(secret, adminRole string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sub, role, err := parseBearer(secret, c.Request().Header.Get("Authorization"))
			if err != nil {
				return unauthorized(c, err)
			}
			setCaller(c, sub, role, adminRole)
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth for routes that guests may call too.  Without an
// Authorization header the request continues anonymously; a header that
// is present but invalid is still rejected.  The guest token header is
// picked up either way.
func OptionalJWT(secret, adminRole string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" {
				setCaller(c, "", "", adminRole)
				return next(c)
			}
			sub, role, err := parseBearer(secret, auth)
			if err != nil {
				return unauthorized(c, err)
			}
			setCaller(c, sub, role, adminRole)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, err error) error {
	msg := "invalid token"
	if errors.Is(err, errNoBearer) {
		msg = err.Error()
	}
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}

// parseBearer validates an "Authorization: Bearer <jwt>" header value and
// returns the sub and role claims.  Numeric subjects are accepted and
// formatted as decimal strings.
func parseBearer(secret, header string) (sub, role string, err error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "", errNoBearer
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", "", fmt.Errorf("parse token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	switch v := claims["sub"].(type) {
	case string:
		sub = v
	case float64:
		sub = fmt.Sprintf("%.0f", v)
	}
	if sub == "" {
		return "", "", errors.New("token has no subject")
	}
	role, _ = claims["role"].(string)
	return sub, role, nil
}

func setCaller(c echo.Context, sub, role, adminRole string) {
	caller := model.Caller{
		Subject:    sub,
		IsAdmin:    sub != "" && adminRole != "" && role == adminRole,
		GuestToken: strings.TrimSpace(c.Request().Header.Get(GuestTokenHeader)),
	}
	if sub != "" {
		c.Set("user_id", sub)
		c.Set("role", role)
	}
	c.Set(callerKey, caller)
}
