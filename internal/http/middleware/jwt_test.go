package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"duel_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

func TestJWT(t *testing.T) {
	service.InitJWT("middleware-test-secret")
	gin.SetMode(gin.TestMode)

	valid, err := service.GenerateJWT(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	r := gin.New()
	r.GET("/me", JWT(), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "username": c.GetString(CtxUsername)})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no bearer prefix", valid, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
