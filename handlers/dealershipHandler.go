package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyflowhq/keyflow_backend/models"
)

func (a *API) CreateDealership(c *gin.Context) {
	var input models.NewDealership
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	dealership, err := a.Engine.CreateDealership(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dealership)
}

func (a *API) GetDealership(c *gin.Context) {
	dealership, err := a.Engine.GetDealership(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealership)
}

func (a *API) UpdateDealership(c *gin.Context) {
	var input models.NewDealership
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	dealership, err := a.Engine.UpdateDealership(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealership)
}

func (a *API) ListDealershipsPublic(c *gin.Context) {
	dealerships, err := a.Engine.ListDealershipsPublic(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealerships)
}

func (a *API) ListDealerships(c *gin.Context) {
	dealerships, err := a.Engine.ListDealerships(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealerships)
}
