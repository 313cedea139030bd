package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/tidyroundlabs/tidyround/internal/actor"
	"github.com/tidyroundlabs/tidyround/internal/config"
)

func newAuthTestRouter(s *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", s.ActorRequired(), func(c *gin.Context) {
		caller := actorFrom(c)
		respondData(c, gin.H{"user_id": caller.UserID.String(), "role": string(caller.Role)})
	})
	r.POST("/internal/run", s.JobSecretRequired(), func(c *gin.Context) {
		respondData(c, gin.H{"ok": true})
	})
	return r
}

func TestActorRequired(t *testing.T) {
	s := &Server{}
	router := newAuthTestRouter(s)

	tests := []struct {
		name       string
		userID     string
		role       string
		wantStatus int
	}{
		{"employee accepted", "1234567890", string(actor.RoleEmployee), http.StatusOK},
		{"admin accepted", "1234567890", string(actor.RoleAdmin), http.StatusOK},
		{"missing user id", "", string(actor.RoleEmployee), http.StatusUnauthorized},
		{"garbage user id", "not-a-snowflake", string(actor.RoleEmployee), http.StatusUnauthorized},
		{"unknown role", "1234567890", "superuser", http.StatusUnauthorized},
		{"missing role", "1234567890", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.userID != "" {
				req.Header.Set("X-User-Id", tt.userID)
			}
			if tt.role != "" {
				req.Header.Set("X-User-Role", tt.role)
			}

			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)
			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}

func TestJobSecretRequired(t *testing.T) {
	s := &Server{cfg: config.Config{
		Scheduler: config.SchedulerConfig{SharedSecret: "s3cret"},
	}}
	router := newAuthTestRouter(s)

	t.Run("correct secret accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/internal/run", nil)
		req.Header.Set("X-Job-Secret", "s3cret")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/internal/run", nil)
		req.Header.Set("X-Job-Secret", "nope")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("empty configured secret rejects everything", func(t *testing.T) {
		unconfigured := &Server{}
		r := newAuthTestRouter(unconfigured)
		req := httptest.NewRequest(http.MethodPost, "/internal/run", nil)
		req.Header.Set("X-Job-Secret", "")
		recorder := httptest.NewRecorder()
		r.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}
