package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyflowhq/keyflow_backend/models"
)

func (a *API) CreateInvite(c *gin.Context) {
	var input models.NewInvite
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	invite, err := a.Engine.CreateInvite(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

func (a *API) ListInvites(c *gin.Context) {
	invites, err := a.Engine.ListInvites(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invites)
}

func (a *API) ValidateInvite(c *gin.Context) {
	invite, err := a.Engine.ValidateInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"email":      invite.Email,
		"role":       invite.Role,
		"expires_at": invite.ExpiresAt,
	})
}

func (a *API) RevokeInvite(c *gin.Context) {
	if err := a.Engine.RevokeInvite(c.Request.Context(), c.Param("id")); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
