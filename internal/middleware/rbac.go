package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/news-api/internal/models"
	"github.com/noah-isme/news-api/pkg/response"
)

type privilegeChecker interface {
	RequireVerifiedAuthor(user *models.User) (*models.User, error)
	RequireAdmin(user *models.User) (*models.User, error)
}

// RequireVerifiedAuthor admits verified authors and admins. It must run after Authenticate.
func RequireVerifiedAuthor(checker privilegeChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := checker.RequireVerifiedAuthor(CurrentUser(c)); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

// RequireAdmin admits admins only. It must run after Authenticate.
func RequireAdmin(checker privilegeChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := checker.RequireAdmin(CurrentUser(c)); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}
