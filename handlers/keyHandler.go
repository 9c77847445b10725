package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/keyflowhq/keyflow_backend/models"
)

func (a *API) CreateKey(c *gin.Context) {
	var input models.NewKey
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	key, err := a.Engine.CreateKey(c.Request.Context(), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

func (a *API) ListKeys(c *gin.Context) {
	views, err := a.Engine.ListKeyViews(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (a *API) GetKey(c *gin.Context) {
	view, err := a.Engine.GetKeyView(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *API) UpdateKey(c *gin.Context) {
	var input models.NewKey
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	key, err := a.Engine.UpdateKey(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (a *API) RetireKey(c *gin.Context) {
	key, err := a.Engine.RetireKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (a *API) CheckoutKey(c *gin.Context) {
	var input models.NewCheckout
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	session, err := a.Engine.Checkout(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (a *API) ReturnKey(c *gin.Context) {
	// The body is optional; returns without notes send nothing at all.
	var input models.ReturnKey
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			a.respondError(c, err)
			return
		}
	}
	session, err := a.Engine.Return(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (a *API) MoveKeyBay(c *gin.Context) {
	var input models.MoveBay
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	session, err := a.Engine.MoveBay(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (a *API) KeyHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	history, err := a.Engine.KeyHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (a *API) KeyCheckoutHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	sessions, err := a.Engine.CheckoutHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (a *API) OverdueKeys(c *gin.Context) {
	views, err := a.Engine.OverdueKeys(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (a *API) SetKeyPdiStatus(c *gin.Context) {
	var input models.SetPdiStatus
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	key, err := a.Engine.SetPdiStatus(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (a *API) KeyPdiHistory(c *gin.Context) {
	logs, err := a.Engine.PdiHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

type bulkImportRequest struct {
	Keys []models.NewKey `json:"keys" binding:"required"`
}

func (a *API) BulkImportKeys(c *gin.Context) {
	var input bulkImportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		a.respondError(c, err)
		return
	}
	result, err := a.Engine.BulkImportKeys(c.Request.Context(), input.Keys)
	if err != nil {
		a.respondError(c, err)
		return
	}
	// Per-row failures are part of the result, not a request error.
	c.JSON(http.StatusOK, result)
}
