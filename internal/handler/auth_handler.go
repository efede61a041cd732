package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/news-api/internal/middleware"
	"github.com/noah-isme/news-api/internal/models"
	"github.com/noah-isme/news-api/internal/service"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
	"github.com/noah-isme/news-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Register godoc
// @Summary Register user
// @Description Create a password account and open its first session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Rotate refresh token
// @Description Exchange a refresh token (body or Bearer header) for a new token pair. Each token can be used once.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := refreshToken(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), token, clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the refresh token. Issued access tokens stay valid until they expire.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, err := refreshToken(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "Successfully logged out"}, nil)
}

// Sessions godoc
// @Summary List sessions
// @Description List the caller's live sessions, oldest first
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/sessions [get]
func (h *AuthHandler) Sessions(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's profile
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// GitHubLogin godoc
// @Summary Start GitHub login
// @Description Redirects to the GitHub consent page, or returns its URL with format=json
// @Tags Authentication
// @Produce json
// @Param format query string false "json to receive the URL instead of a redirect"
// @Success 302
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/github [get]
func (h *AuthHandler) GitHubLogin(c *gin.Context) {
	url, err := h.service.GitHubLoginURL(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if c.Query("format") == "json" {
		response.JSON(c, http.StatusOK, models.GitHubLoginResponse{URL: url}, nil)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// GitHubCallback godoc
// @Summary Complete GitHub login
// @Description OAuth callback exchanging the code for a token pair
// @Tags Authentication
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "OAuth state"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/github/callback [get]
func (h *AuthHandler) GitHubCallback(c *gin.Context) {
	if msg := c.Query("error"); msg != "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "GitHub authentication failed: "+msg))
		return
	}
	code := c.Query("code")
	if code == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "code is required"))
		return
	}

	res, err := h.service.LoginWithGitHub(c.Request.Context(), code, c.Query("state"), clientInfo(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// refreshToken reads refresh_token from the JSON body, falling back to the
// Bearer header.
func refreshToken(c *gin.Context) (string, error) {
	var req models.RefreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refresh payload")
		}
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, nil
	}
	token, err := middleware.BearerToken(c)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "refresh token required")
	}
	return token, nil
}
