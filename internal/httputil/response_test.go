package httputil_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/paramkeep/paramkeep/internal/httputil"
)

func TestRespondErrorDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set("request_id", "rid-1")
		httputil.RespondErrorDetails(c, http.StatusBadRequest, "invalid_value", "first", []string{"second"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	var body httputil.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "invalid_value" || body.Message != "first" || body.RequestID != "rid-1" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Details) != 1 || body.Details[0] != "second" {
		t.Errorf("details = %v", body.Details)
	}
}

func TestRespondError_OmitsEmptyFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		httputil.RespondError(c, http.StatusNotFound, "not_found", "gone")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["details"]; ok {
		t.Error("details should be omitted")
	}
	if _, ok := raw["request_id"]; ok {
		t.Error("request_id should be omitted")
	}
}
