package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupCronRouter(apiKey string) *gin.Engine {
	r := gin.New()
	r.Use(CronAuthMiddleware(apiKey))
	r.POST("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func doRequest(r *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", http.NoBody)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func TestCronAuthMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		configuredKey string
		requestKey    string
		wantStatus    int
		wantMessage   string
	}{
		{
			name:          "valid_api_key",
			configuredKey: "secret-cron-key",
			requestKey:    "secret-cron-key",
			wantStatus:    http.StatusOK,
		},
		{
			name:          "invalid_api_key",
			configuredKey: "secret-cron-key",
			requestKey:    "wrong-key",
			wantStatus:    http.StatusUnauthorized,
			wantMessage:   "Invalid or missing API key",
		},
		{
			name:          "missing_api_key",
			configuredKey: "secret-cron-key",
			requestKey:    "",
			wantStatus:    http.StatusUnauthorized,
			wantMessage:   "Invalid or missing API key",
		},
		{
			name:          "empty_configured_key",
			configuredKey: "",
			requestKey:    "any-key",
			wantStatus:    http.StatusServiceUnavailable,
			wantMessage:   "Scheduled endpoints are not configured",
		},
		{
			name:          "both_empty",
			configuredKey: "",
			requestKey:    "",
			wantStatus:    http.StatusServiceUnavailable,
			wantMessage:   "Scheduled endpoints are not configured",
		},
		{
			name:          "partial_match_rejected",
			configuredKey: "secret-cron-key",
			requestKey:    "secret-cron",
			wantStatus:    http.StatusUnauthorized,
			wantMessage:   "Invalid or missing API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupCronRouter(tt.configuredKey)
			rec := doRequest(router, tt.requestKey)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if tt.wantMessage != "" {
				body := parseBody(t, rec)
				if success, _ := body["success"].(bool); success {
					t.Error("expected success=false in error response")
				}
				if msg, _ := body["message"].(string); msg != tt.wantMessage {
					t.Errorf("message = %q, want %q", msg, tt.wantMessage)
				}
			}

			if tt.wantStatus == http.StatusOK {
				body := parseBody(t, rec)
				if status, _ := body["status"].(string); status != "ok" {
					t.Errorf("expected handler to be reached, got status = %q", status)
				}
			}
		})
	}
}
