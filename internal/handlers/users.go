package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"usergate/api/internal/middleware"
	"usergate/api/internal/models"
	"usergate/api/internal/repository"
	"usergate/api/internal/service"
)

func (h HandlerSet) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.userService.List(c.Request.Context(), page, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	users := make([]gin.H, 0, len(result.Users))
	for _, user := range result.Users {
		users = append(users, gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"givenName":  user.GivenName,
			"familyName": user.FamilyName,
			"active":     user.Active,
			"roles":      user.Roles,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"pagination": gin.H{
			"total":      result.Pagination.Total,
			"page":       result.Pagination.Page,
			"limit":      result.Pagination.Limit,
			"totalPages": result.Pagination.TotalPages,
		},
	})
}

type updateUserRequest struct {
	GivenName  *string `json:"givenName"`
	FamilyName *string `json:"familyName"`
	Active     *bool   `json:"active"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.userService.Update(c.Request.Context(), c.Param("id"), models.UserUpdate{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		Active:     req.Active,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		h.log.Error().Err(err).Msg("update user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.userService.Delete(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfDelete):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_delete_own_account"})
		case errors.Is(err, repository.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		default:
			h.log.Error().Err(err).Msg("delete user failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) UserPermissions(c *gin.Context) {
	userID := c.Param("id")

	perms, err := h.userService.Permissions(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("permissions lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	resp := make([]gin.H, 0, len(perms))
	for _, p := range perms {
		resp = append(resp, gin.H{
			"id":          p.ID,
			"name":        p.Name,
			"resource":    p.Resource,
			"action":      p.Action,
			"description": p.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":      userID,
		"permissions": resp,
	})
}
