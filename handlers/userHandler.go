package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyflowhq/keyflow_backend/models"
)

func (a *API) CreateUser(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	user, err := a.Engine.CreateUser(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (a *API) ListUsers(c *gin.Context) {
	users, err := a.Engine.ListUsers(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (a *API) DeleteUser(c *gin.Context) {
	if err := a.Engine.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (a *API) GetDemoLimits(c *gin.Context) {
	limits, err := a.Engine.GetDemoLimits(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}
