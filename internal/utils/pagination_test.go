package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gotest.tools/assert"
)

func TestCalculatePagination(t *testing.T) {
	meta := CalculatePagination(2, 10, 25)
	assert.Equal(t, 3, meta.LastPage)
	assert.Equal(t, 11, meta.From)
	assert.Equal(t, 20, meta.To)
	assert.Equal(t, true, meta.HasMore)

	meta = CalculatePagination(3, 10, 25)
	assert.Equal(t, 25, meta.To)
	assert.Equal(t, false, meta.HasMore)

	meta = CalculatePagination(0, 0, 0)
	assert.Equal(t, 1, meta.CurrentPage)
	assert.Equal(t, 25, meta.PerPage)
	assert.Equal(t, 0, meta.From)
	assert.Equal(t, 0, meta.To)

	assert.Equal(t, 50, GetOffset(3, 25))
}

func TestGetPaginationParams(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(GetPaginationParams(c))
	})

	cases := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Page: 1, Limit: 25}},
		{"?page=3&limit=50&entity=%20Staff%20", PaginationParams{Page: 3, Limit: 50, Entity: "staff"}},
		{"?page=-1&limit=7", PaginationParams{Page: 1, Limit: 25}},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), -1)
		assert.NilError(t, err)
		var got PaginationParams
		assert.NilError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, tc.want, got)
	}
}
