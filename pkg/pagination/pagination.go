package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Params is a validated page/limit pair taken from query parameters.
type Params struct {
	Page  int
	Limit int
}

// Parse reads ?page= and ?limit=, falling back to defaults and clamping
// the limit so a single request cannot dump a whole table.
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Offset converts the page/limit pair into a SQL offset.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}
