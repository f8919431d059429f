package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// Page is the envelope for paginated list responses. Count is the number
// of items in this page.
type Page struct {
	Items  any `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// Paged writes items as a Page. A nil slice is sent as [].
func Paged[T any](c *gin.Context, items []T, limit, offset int) {
	if items == nil {
		items = []T{}
	}
	OK(c, Page{Items: items, Limit: limit, Offset: offset, Count: len(items)})
}
