package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/amoshaviv/flow-tester-sub001/internal/config"
	"github.com/amoshaviv/flow-tester-sub001/internal/middleware"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

// AuthHandler serves sign-up, sign-in, the profile and the model catalog.
type AuthHandler struct {
	auth   service.AuthService
	guard  *Guard
	cfg    config.AuthConfig
	logger *log.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth service.AuthService, guard *Guard, cfg config.AuthConfig, logger *log.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, guard: guard, cfg: cfg, logger: logger.WithPrefix("handler")}
}

// RegisterRoutes registers account routes
func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v2")
	{
		api.POST("/auth/signup", h.SignUp)
		api.POST("/auth/signin", h.SignIn)
		api.POST("/auth/signout", h.SignOut)
		api.GET("/models", h.ListModels)
	}

	profile := r.Group("/api/v2/profile", h.guard.Session()...)
	{
		profile.GET("", h.GetProfile)
		profile.PATCH("", h.UpdateProfile)
	}
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req service.SignUpRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.SignUp(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": user})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req service.SignInRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.auth.SignIn(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, session.Token, int(h.cfg.SessionTTL().Seconds()), "/", "", h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{
		"user":      session.User,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	if token := middleware.SessionToken(c, h.cfg.CookieName); token != "" {
		if err := h.auth.SignOut(c.Request.Context(), token); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	c.SetCookie(h.cfg.CookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully"})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) ListModels(c *gin.Context) {
	models := service.Models()
	c.JSON(http.StatusOK, gin.H{
		"data":  models,
		"total": len(models),
	})
}
