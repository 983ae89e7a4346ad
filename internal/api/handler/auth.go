package handler

import (
	"pitchmatch/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Authenticate resolves the request token and stores the identity in the
// gin context. Socket routes use it too, so a bad token is refused before
// the upgrade.
func (h *Handler) Authenticate(c *gin.Context) {
	id, err := h.Resolver.Resolve(c.Request.Context(), auth.TokenFromRequest(c.Request))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func identity(c *gin.Context) auth.Identity {
	id, _ := c.MustGet(identityKey).(auth.Identity)
	return id
}
