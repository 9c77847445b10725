package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyflowhq/keyflow_backend/models"
)

func (a *API) Login(c *gin.Context) {
	var input models.Login
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	payload, err := a.Engine.Authenticate(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (a *API) PinLogin(c *gin.Context) {
	var input models.PinLogin
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	payload, err := a.Engine.AuthenticatePin(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (a *API) DemoLogin(c *gin.Context) {
	payload, err := a.Engine.AuthenticateDemo(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (a *API) Me(c *gin.Context) {
	user, err := a.Engine.CurrentUser(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *API) ChangePin(c *gin.Context) {
	var input models.ChangePin
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	user, err := a.Engine.ChangePin(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *API) AcceptInvite(c *gin.Context) {
	var input models.AcceptInvite
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	user, err := a.Engine.AcceptInvite(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
