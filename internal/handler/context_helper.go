package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/news-api/internal/middleware"
	"github.com/noah-isme/news-api/internal/models"
	appErrors "github.com/noah-isme/news-api/pkg/errors"
)

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

func clientInfo(c *gin.Context) models.ClientInfo {
	return models.ClientInfo{UserAgent: c.GetHeader("User-Agent"), IP: c.ClientIP()}
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// pageParams reads skip/limit. Values that do not parse fall back to the defaults.
func pageParams(c *gin.Context) (int, int) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil {
		skip = 0
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		limit = 100
	}
	return models.ClampPage(skip, limit)
}
