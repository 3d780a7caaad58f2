package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crew-import/internal/config"

	"github.com/gofiber/fiber/v2"
	"gotest.tools/assert"
)

func TestSetupWithoutStores(t *testing.T) {
	app := fiber.New()
	Setup(app, nil, nil, &config.Config{AppName: "Crew Import", ImportTitleRows: 1, UploadMaxSize: 1 << 20})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	assert.NilError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["database"])
	assert.Equal(t, false, health["redis"])

	cases := []struct {
		path   string
		status int
	}{
		{"/api/v1/entities", http.StatusOK},
		{"/api/v1/imports", http.StatusServiceUnavailable},
		{"/api/v1/imports/state/staff", http.StatusOK},
		{"/api/v1/imports/b-1", http.StatusServiceUnavailable},
		{"/api/templates/customers", http.StatusOK},
		{"/api/templates/nope", http.StatusNotFound},
		{"/api/imports/template?entity=jobs&format=xlsx", http.StatusOK},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil), -1)
		assert.NilError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)
	}
}
