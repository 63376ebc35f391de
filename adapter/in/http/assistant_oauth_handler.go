package http

import (
	"errors"
	"net/url"

	"assistant_server/core/port/in"
	"assistant_server/pkg/apperr"
	"assistant_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type OAuthHandler struct {
	oauthService in.OAuthService
	failureURL   string
}

func NewOAuthHandler(oauthService in.OAuthService, failureURL string) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		failureURL:   failureURL,
	}
}

// Register mounts the protected OAuth routes. The public callback is mounted
// separately via RegisterPublic because it must skip auth.
func (h *OAuthHandler) Register(app fiber.Router) {
	oauth := app.Group("/oauth/google")
	oauth.Post("/connect", h.Connect)
	oauth.Get("/status", h.Status)
	oauth.Delete("/", h.Disconnect)
}

func (h *OAuthHandler) RegisterPublic(app fiber.Router) {
	app.Get("/oauth/google/callback", h.Callback)
}

// Connect starts the authorization flow for a household member identified by
// phone. The returned auth_url is relayed to the member over WhatsApp.
func (h *OAuthHandler) Connect(c *fiber.Ctx) error {
	tenantID, err := GetTenantID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	var req in.InitiateOAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.UserPhone == "" {
		return ErrorResponse(c, 400, "user_phone required")
	}
	req.TenantID = &tenantID

	initiation, err := h.oauthService.Initiate(c.Context(), &req)
	if err != nil {
		return ServiceErrorResponse(c, err, "oauth connect")
	}

	logger.Info("[OAuth Connect] Flow started for phone %s", req.UserPhone)
	return c.JSON(initiation)
}

// Callback is the public Google redirect target. Browsers land here, so every
// outcome is a redirect rather than a JSON error.
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if errorParam := c.Query("error"); errorParam != "" {
		logger.Warn("[OAuth Callback] Provider returned error: %s", errorParam)
		return c.Redirect(h.failureURL + "?error=" + errorParam)
	}
	if code == "" || state == "" {
		logger.Warn("[OAuth Callback] Missing code or state")
		return c.Redirect(h.failureURL + "?error=missing_parameters")
	}

	result, err := h.oauthService.HandleCallback(c.Context(), state, code)
	if err != nil {
		logger.WithError(err).Warn("[OAuth Callback] Exchange failed")
		return c.Redirect(h.failureURL + "?error=" + callbackErrorParam(err))
	}

	logger.Info("[OAuth Callback] Credentials stored for user %s", result.UserID)
	return c.Redirect(result.RedirectURL)
}

// callbackErrorParam turns a callback failure into the redirect's error
// value, surfacing the application error message so the landing page can
// tell an expired state from a failed token exchange.
func callbackErrorParam(err error) string {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return url.QueryEscape(appErr.Message)
	}
	return "oauth_failed"
}

func (h *OAuthHandler) Status(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	status, err := h.oauthService.ConnectionStatus(c.Context(), userID)
	if err != nil {
		return ServiceErrorResponse(c, err, "oauth status")
	}

	return c.JSON(status)
}

func (h *OAuthHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, 401, "unauthorized")
	}

	if err := h.oauthService.Disconnect(c.Context(), userID); err != nil {
		return ServiceErrorResponse(c, err, "oauth disconnect")
	}

	return c.JSON(fiber.Map{"status": "disconnected"})
}
