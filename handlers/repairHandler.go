package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyflowhq/keyflow_backend/models"
)

func (a *API) FlagKeyAttention(c *gin.Context) {
	var input models.NewRepairRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	record, err := a.Engine.FlagAttention(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (a *API) MarkKeyFixed(c *gin.Context) {
	record, err := a.Engine.MarkFixed(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (a *API) ClearKeyAttention(c *gin.Context) {
	if err := a.Engine.ClearAttention(c.Request.Context(), c.Param("id")); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (a *API) ListKeyRepairRequests(c *gin.Context) {
	records, err := a.Engine.ListRepairRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (a *API) ListRepairRequests(c *gin.Context) {
	records, err := a.Engine.ListRepairRequests(c.Request.Context(), "")
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
