package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"default dev origin", nil, "http://localhost:5173", true},
		{"configured origin", []string{"https://dash.example.test"}, "https://dash.example.test", true},
		{"foreign origin", []string{"https://dash.example.test"}, "https://evil.example.test", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := gin.New()
			r.Use(CORS(tc.origins))
			r.OPTIONS("/api/events", func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Fatalf("unexpected allow-origin header: got=%q want=%q", got, tc.origin)
			}
			if !tc.allowed && got != "" {
				t.Fatalf("origin %q should be refused, got allow-origin %q", tc.origin, got)
			}
		})
	}
}
