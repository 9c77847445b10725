package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/keyflowhq/keyflow_backend/models"
)

func respondWith(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	api := &API{Logger: logger}
	api.respondError(c, err)
	return w
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrKeyNotFound, http.StatusNotFound},
		{models.ErrUserNotFound, http.StatusNotFound},
		{models.ErrAlreadyOpen, http.StatusConflict},
		{models.ErrDuplicateStockNumber, http.StatusConflict},
		{models.ErrCapacityExceeded, http.StatusConflict},
		{models.ErrNoOpStatusChange, http.StatusConflict},
		{models.ErrNoOpenSession, http.StatusBadRequest},
		{models.ErrInvalidBay, http.StatusBadRequest},
		{models.ErrInvalidReason, http.StatusBadRequest},
		{models.ErrNoActiveAttentionRecord, http.StatusBadRequest},
		{models.NewValidationError("name", "required"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := respondWith(t, tc.err)
		if w.Code != tc.want {
			t.Fatalf("respondError(%v) = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}
