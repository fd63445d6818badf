package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewMetaInfo(t *testing.T) {
	testCases := []struct {
		name  string
		p     PaginationParams
		total int64
		pages int
	}{
		{"Empty", PaginationParams{Page: 1, PerPage: 10}, 0, 0},
		{"Exact", PaginationParams{Page: 1, PerPage: 10}, 20, 2},
		{"Remainder", PaginationParams{Page: 3, PerPage: 10}, 21, 3},
		{"ZeroPerPage", PaginationParams{Page: 1}, 5, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			meta := newMetaInfo(tc.p, tc.total)
			assert.Equal(t, tc.pages, meta.TotalPages)
			assert.Equal(t, int(tc.total), meta.TotalItems)
			assert.Equal(t, tc.p.Page, meta.Page)
		})
	}
}

func TestRespondNotFound_DefaultMessage(t *testing.T) {
	r := setupTestRouter()
	r.GET("/missing", func(c *gin.Context) { RespondNotFound(c, "") })

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/missing", nil)
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	resp := decodeData(t, rr, nil)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
	assert.Equal(t, "Resource not found", resp.Error.Message)
}
