package middleware

// identity.go holds the helpers that read the caller stored by JWTAuth or
// OptionalJWT back out of the Echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

const callerKey = "caller"

// CallerFrom returns the caller attached to the request.  Requests that
// did not pass through an auth middleware are anonymous, although a guest
// token header is still honoured.
func CallerFrom(c echo.Context) model.Caller {
	if v, ok := c.Get(callerKey).(model.Caller); ok {
		return v
	}
	return model.Caller{GuestToken: c.Request().Header.Get(GuestTokenHeader)}
}

// callerID returns a stable identifier for rate limiting: the JWT subject,
// or "anon" when none.
func callerID(c echo.Context) string {
	if s := CallerFrom(c).Subject; s != "" {
		return s
	}
	return "anon"
}
