package middleware

import (
	"warung/internal/identity"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie is the name of the session cookie. The cookie is host-only
// on purpose: no Domain attribute is ever set.
const SessionCookie = "session"

const (
	localsIdentity = "identity"
	localsToken    = "session_token"
)

// SessionContext resolves the session cookie into an identity and stores it
// in the request context. Unresolvable sessions fall back to guest; whether
// guest is acceptable is decided per workflow, not here.
func SessionContext(resolver *identity.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		fingerprint := identity.Fingerprint(c.Get(fiber.HeaderUserAgent), c.IP())

		ident, err := resolver.Resolve(c.UserContext(), token, fingerprint)
		if err != nil {
			ident = identity.Guest
			token = ""
		}
		c.Locals(localsIdentity, ident)
		c.Locals(localsToken, token)
		return c.Next()
	}
}

// IdentityFrom returns the identity resolved for this request, or guest.
func IdentityFrom(c *fiber.Ctx) identity.Identity {
	if ident, ok := c.Locals(localsIdentity).(identity.Identity); ok {
		return ident
	}
	return identity.Guest
}

// TokenFrom returns the verified session token for this request, if any.
func TokenFrom(c *fiber.Ctx) string {
	if token, ok := c.Locals(localsToken).(string); ok {
		return token
	}
	return ""
}
