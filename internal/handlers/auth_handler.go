package handlers

import (
	"errors"
	"log"
	"time"

	"warung/internal/identity"
	"warung/internal/middleware"
	"warung/internal/services"
	"warung/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles registration and the session lifecycle over HTTP.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/logout", h.HandleLogout)
	authRoutes.Post("/refresh", h.HandleRefresh)
}

// HandleRegister creates a new user account with role user.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var in services.RegisterInput
	d := validation.NewDecoder(c.Body())
	d.String("username", true, &in.Username)
	d.String("password", true, &in.Password)
	d.String("shipping_address", false, &in.ShippingAddress)
	d.String("payment_reference", false, &in.PaymentReference)
	if failure := d.Finish(&in); failure != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error_kind": "ValidationFailure",
			"detail":     failure.Fields,
		})
	}

	user, err := h.authService.Register(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error_kind": "UsernameTaken",
			})
		}
		log.Printf("Error registering user: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error_kind": "StoreFailed",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies credentials and sets the session cookie.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	d := validation.NewDecoder(c.Body())
	d.String("username", true, &req.Username)
	d.String("password", true, &req.Password)
	if failure := d.Finish(&req); failure != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error_kind": "ValidationFailure",
			"detail":     failure.Fields,
		})
	}

	fingerprint := identity.Fingerprint(c.Get(fiber.HeaderUserAgent), c.IP())
	session, err := h.authService.Login(c.UserContext(), req.Username, req.Password, fingerprint)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error_kind": "Unauthenticated",
			})
		}
		log.Printf("Error logging in: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error_kind": "StoreFailed",
		})
	}

	c.Cookie(sessionCookie(c, session.Token, session.ExpiresAt))
	return c.JSON(fiber.Map{
		"user_id":    session.UserID,
		"expires_at": session.ExpiresAt,
	})
}

// HandleLogout destroys the current session and expires the cookie.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	ident := middleware.IdentityFrom(c)
	if !ident.Authenticated() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error_kind": "Unauthenticated",
		})
	}
	if err := h.authService.Logout(c.UserContext(), middleware.TokenFrom(c)); err != nil {
		log.Printf("Error logging out: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error_kind": "StoreFailed",
		})
	}
	c.Cookie(sessionCookie(c, "", time.Now().UTC().Add(-time.Hour)))
	return c.JSON(fiber.Map{"logged_out": true})
}

// HandleRefresh explicitly extends the current session's expiry.
func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	ident := middleware.IdentityFrom(c)
	if !ident.Authenticated() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error_kind": "Unauthenticated",
		})
	}
	token := middleware.TokenFrom(c)
	expires, err := h.authService.Refresh(c.UserContext(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error_kind": "Unauthenticated",
		})
	}
	c.Cookie(sessionCookie(c, token, expires))
	return c.JSON(fiber.Map{"expires_at": expires})
}

// sessionCookie builds the host-only session cookie. No Domain attribute is
// set; Secure follows the request scheme.
func sessionCookie(c *fiber.Ctx, token string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
		Secure:   c.Protocol() == "https",
	}
}
