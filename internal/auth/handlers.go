package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IPHandler handles GET /api/ip.
func IPHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ip": c.ClientIP()})
}
