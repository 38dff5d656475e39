package utils

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/maintenance-tracker/internal/constants"
)

// PaginationParams holds the pagination parameters. A zero Limit means the
// whole result set.
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// Unbounded reports whether every row should be returned
func (p PaginationParams) Unbounded() bool {
	return p.Limit <= 0
}

// GetPaginationParams reads page and limit from the query string.
// limit=all returns the full task log on one page.
func GetPaginationParams(c *gin.Context) PaginationParams {
	if strings.EqualFold(c.Query("limit"), "all") {
		return PaginationParams{Page: 1}
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultPageSize)))

	return NewPaginationParams(page, limit)
}

// NewPaginationParams clamps page and limit to the allowed range
func NewPaginationParams(page, limit int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}
