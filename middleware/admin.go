package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/harukit/monpix/models"
	"github.com/harukit/monpix/utils"
)

// AdminRequired gates account-management routes. The role is re-read from
// the database rather than trusted from the token, so a demotion takes
// effect on the next request instead of at token expiry. Must run after
// AuthRequired.
func AdminRequired(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw, exists := ctx.Get(ContextUserIDKey)
		if !exists {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}
		userID, ok := raw.(uint)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40111, "account no longer exists")
			ctx.Abort()
			return
		}
		if !user.IsAdmin() {
			utils.Error(ctx, http.StatusForbidden, 40300, "administrator role required")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
