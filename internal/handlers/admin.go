package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) AdminGetAccount(c *gin.Context) {
	account, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": newAccountResponse(account)})
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h HandlerSet) AdminUpdateRole(c *gin.Context) {
	actor, ok := currentAccount(c)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	account, err := h.accounts.UpdateRole(c.Request.Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": newAccountResponse(account)})
}
