package server

import (
	"crypto/subtle"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/tidyroundlabs/tidyround/internal/actor"
)

const contextActorKey = "actor"

// ActorRequired extracts the caller identity set by the upstream auth proxy.
// Identity arrives as X-User-Id plus X-User-Role; requests without both are
// rejected.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		rawRole := actor.Role(strings.TrimSpace(c.GetHeader("X-User-Role")))

		userID, err := snowflake.ParseString(rawID)
		if rawID == "" || err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		switch rawRole {
		case actor.RoleEmployee, actor.RoleCustomer, actor.RoleAdmin:
		default:
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextActorKey, actor.Actor{UserID: userID, Role: rawRole})
		c.Next()
	}
}

func actorFrom(c *gin.Context) actor.Actor {
	v, _ := c.Get(contextActorKey)
	a, _ := v.(actor.Actor)
	return a
}

// JobSecretRequired guards the internal job-trigger endpoints with the
// shared scheduler secret.
func (s *Server) JobSecretRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.cfg.Scheduler.SharedSecret
		provided := strings.TrimSpace(c.GetHeader("X-Job-Secret"))
		if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
