package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	accounts AccountService
}

func NewUserHandler(accounts AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// GetUsers lists accounts (PROTECTED - admins)
func (h *UserHandler) GetUsers(c *gin.Context) {
	page, err := h.accounts.List(c.Request.Context(), currentUser(c), queryInt(c, "page"), queryInt(c, "pageSize"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// UpdateUserRole grants or revokes the writer and admin roles (PROTECTED - admins)
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	id, ok := paramID(c, "id", "user")
	if !ok {
		return
	}
	var input struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Role is required")
		return
	}

	user, err := h.accounts.SetRole(c.Request.Context(), currentUser(c), id, input.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
