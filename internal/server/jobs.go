package server

import (
	"github.com/gin-gonic/gin"
)

// Internal job triggers run the same code paths as the scheduler ticks.
// They hold the request open until the run finishes, so operators see the
// outcome directly.

func (s *Server) TriggerGenerate(c *gin.Context) {
	if err := s.jobs.RunGenerate(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"job": "generate-week", "status": "done"})
}

func (s *Server) TriggerReconcile(c *gin.Context) {
	if err := s.jobs.RunReconcile(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"job": "reconcile-unclaimed", "status": "done"})
}

func (s *Server) TriggerRetries(c *gin.Context) {
	if err := s.jobs.RunRetries(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"job": "process-retries", "status": "done"})
}
