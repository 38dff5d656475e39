package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/maintenance-tracker/internal/constants"
)

func paramsFor(query string) PaginationParams {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/tasks"+query, nil)
	return GetPaginationParams(c)
}

func TestGetPaginationParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  PaginationParams
	}{
		{"defaults", "", PaginationParams{Page: 1, Limit: constants.DefaultPageSize}},
		{"second page", "?page=2&limit=10", PaginationParams{Page: 2, Limit: 10, Offset: 10}},
		{"negative page", "?page=-3&limit=10", PaginationParams{Page: 1, Limit: 10}},
		{"limit too large", "?limit=100000", PaginationParams{Page: 1, Limit: constants.DefaultPageSize}},
		{"all", "?limit=all&page=4", PaginationParams{Page: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paramsFor(tt.query))
		})
	}
}

func TestPaginationParams_Unbounded(t *testing.T) {
	assert.True(t, PaginationParams{}.Unbounded())
	assert.False(t, NewPaginationParams(1, 5).Unbounded())
}
