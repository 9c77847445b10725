package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/keyflowhq/keyflow_backend/models"
	"github.com/keyflowhq/keyflow_backend/utils"
)

func newTestAPI() *API {
	store := models.NewMemoryLifecycleStore()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &API{Engine: models.NewKeyLifecycle(store, store, logger), Logger: logger}
}

func demoAdminRequestContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, models.DemoAdminUserID)
	ctx = utils.SetUserNameInContext(ctx, "Demo Admin")
	ctx = utils.SetUserRoleInContext(ctx, string(models.UserRoleDealershipAdmin))
	ctx = utils.SetDealershipIdInContext(ctx, models.DemoDealershipID)
	ctx = utils.SetIsDemoInContext(ctx, true)
	return ctx
}

func testRequest(t *testing.T, method, path string, body interface{}, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req.WithContext(demoAdminRequestContext())
	c.Params = params
	return c, w
}

func TestBulkImportAllRowsFailedStillOK(t *testing.T) {
	api := newTestAPI()

	c, w := testRequest(t, http.MethodPost, "/api/keys/bulk-import", map[string]interface{}{
		"keys": []map[string]string{
			{"stock_number": "  "},
			{"stock_number": "Z1", "condition": "damaged"},
		},
	}, nil)
	api.BulkImportKeys(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var result models.BulkImportResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Imported != 0 || len(result.Failed) != 2 {
		t.Fatalf("result = %+v, want 0 imported, 2 failed", result)
	}
}

func TestReturnKeyOptionalNotesBody(t *testing.T) {
	api := newTestAPI()
	ctx := demoAdminRequestContext()

	key, err := api.Engine.CreateKey(ctx, &models.NewKey{StockNumber: "R100"})
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if _, err := api.Engine.Checkout(ctx, key.ID, &models.NewCheckout{Reason: "test_drive"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	params := gin.Params{{Key: "id", Value: key.ID}}
	c, w := testRequest(t, http.MethodPost, "/api/keys/"+key.ID+"/return", models.ReturnKey{Notes: "fob scuffed"}, params)
	api.ReturnKey(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	history, err := api.Engine.KeyHistory(ctx, key.ID, 1)
	if err != nil {
		t.Fatalf("KeyHistory: %v", err)
	}
	if len(history) != 1 || history[0].Notes != "fob scuffed" {
		t.Fatalf("latest entry = %+v, want return notes", history)
	}

	// A second cycle with no body at all still returns cleanly.
	if _, err := api.Engine.Checkout(ctx, key.ID, &models.NewCheckout{Reason: "show_move"}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	c, w = testRequest(t, http.MethodPost, "/api/keys/"+key.ID+"/return", nil, params)
	api.ReturnKey(c)
	if w.Code != http.StatusOK {
		t.Fatalf("bodyless return status = %d, want 200: %s", w.Code, w.Body.String())
	}
}
