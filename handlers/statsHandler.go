package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) DashboardStats(c *gin.Context) {
	stats, err := a.Engine.GetDashboardStats(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *API) ServiceBays(c *gin.Context) {
	board, err := a.Engine.ServiceBays(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
