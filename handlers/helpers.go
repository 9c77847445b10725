package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/models"
	"github.com/keyflowhq/keyflow_backend/utils"
)

// API wires the HTTP layer to the lifecycle engine. Handlers only translate
// between JSON and engine calls; authorization and invariants live in the
// engine.
type API struct {
	Engine *models.KeyLifecycle
	Logger *logrus.Logger
}

func NewAPI(engine *models.KeyLifecycle) *API {
	return &API{Engine: engine, Logger: config.GetLogger()}
}

// respondError maps engine errors onto HTTP statuses. Unknown errors become
// a 500 with a generic body so internals never leak to clients.
func (a *API) respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": ve.Fields})
		return
	}

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": utils.ProcessValidationErrors(validatorErrs),
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrKeyNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrDealershipNotFound),
		errors.Is(err, models.ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAlreadyOpen),
		errors.Is(err, models.ErrDuplicateStockNumber),
		errors.Is(err, models.ErrCapacityExceeded),
		errors.Is(err, models.ErrNoOpStatusChange):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNoOpenSession),
		errors.Is(err, models.ErrInvalidBay),
		errors.Is(err, models.ErrInvalidReason),
		errors.Is(err, models.ErrNoActiveAttentionRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		config.LogError(a.Logger, "handlers", "respondError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
