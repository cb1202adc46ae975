package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"usergate/api/internal/middleware"
	"usergate/api/internal/models"
	"usergate/api/internal/repository"
	"usergate/api/internal/service"
)

type registerRequest struct {
	Email      string  `json:"email" binding:"required"`
	Password   string  `json:"password" binding:"required"`
	GivenName  *string `json:"givenName"`
	FamilyName *string `json:"familyName"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	GivenName  *string   `json:"givenName"`
	FamilyName *string   `json:"familyName"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Email:      user.Email,
		GivenName:  user.GivenName,
		FamilyName: user.FamilyName,
		Active:     user.Active,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email_and_password_required"})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email_and_password_required"})
		case errors.Is(err, repository.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email_already_registered"})
		default:
			h.log.Error().Err(err).Msg("register failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email_and_password_required"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email_and_password_required"})
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		case errors.Is(err, service.ErrAccountInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "account_inactive"})
		default:
			h.log.Error().Err(err).Msg("login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      toUserResponse(result.User),
	})
}

func (h HandlerSet) Profile(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.authService.Profile(c.Request.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("profile lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":         profile.ID,
			"email":      profile.Email,
			"givenName":  profile.GivenName,
			"familyName": profile.FamilyName,
			"active":     profile.Active,
			"roles":      profile.Roles,
		},
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	token, ok := middleware.TokenFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_token"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), identity, token, c.ClientIP()); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_not_found"})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_token"})
		default:
			h.log.Error().Err(err).Msg("logout failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type auditResponse struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"userId"`
	Email     string    `json:"email"`
	Success   bool      `json:"success"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h HandlerSet) LoginAudit(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	entries, err := h.authService.LoginAudit(c.Request.Context(), identity.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("audit lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	resp := make([]auditResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, auditResponse{
			ID:        entry.ID,
			UserID:    entry.UserID,
			Email:     entry.Email,
			Success:   entry.Success,
			IP:        entry.IPAddress,
			CreatedAt: entry.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"logs": resp})
}
