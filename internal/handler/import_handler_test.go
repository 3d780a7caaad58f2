package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crew-import/internal/config"
	"crew-import/internal/service"
	"crew-import/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"gotest.tools/assert"
)

type fakeQueue struct {
	tasks []*asynq.Task
}

func (q *fakeQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "job-1"}, nil
}

// crewServer fakes the upstream: /api/users resolves company 855 and every
// POST succeeds.
func crewServer(t *testing.T, posts *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet && r.URL.Path == "/api/users" {
			_, _ = w.Write([]byte(`{"data":[{"id":1,"company_id":855,"email":"a@b.c"}]}`))
			return
		}
		n := atomic.AddInt32(posts, 1)
		fmt.Fprintf(w, `{"data":{"id":%d}}`, n)
	}))
	t.Cleanup(server.Close)
	return server
}

func setCrewEnv(t *testing.T, baseURL, token string) {
	t.Helper()
	t.Setenv("NUXT_CREW_BASE_URL", baseURL)
	t.Setenv("CREW_BASE_URL", "")
	t.Setenv("NUXT_CREW_API_TOKEN", token)
	t.Setenv("CREW_API_TOKEN", "")
	t.Setenv("CREW_COMPANY_ID", "")
}

func newTestApp(queue Enqueuer) *fiber.App {
	cfg := &config.Config{UploadMaxSize: 1 << 20, ImportTitleRows: 1, CrewTimeout: 2 * time.Second}
	registry := service.NewRegistry(service.Defaults{PhoneCountryCode: "1", JobColor: "#0c4329", PasswordMin: 6}, nil)
	excel := service.NewExcelService(cfg.ImportTitleRows)
	importService := service.NewImportService(cfg, registry, nil, nil, nil)

	handler := NewImportHandler(importService, service.NewCSVService(cfg.ImportTitleRows), excel, queue, cfg)
	templates := NewTemplateHandler(service.NewTemplateService(registry, excel, cfg.ImportTitleRows))

	app := fiber.New()
	app.Post("/api/crew/:entity/upload", handler.Upload)
	app.Post("/api/crew/:entity", handler.Import)
	app.Get("/api/templates/:entity", templates.Download)
	app.Get("/api/imports/template", templates.DownloadByQuery)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	assert.NilError(t, err)

	var decoded map[string]interface{}
	assert.NilError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestImportMissingCredentials(t *testing.T) {
	var posts int32
	crewServer(t, &posts)
	setCrewEnv(t, "", "")

	resp, body := postJSON(t, newTestApp(nil), "/api/crew/jobs", `{"rows":[{"Job Name":"North"}]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "missing NUXT_CREW_BASE_URL or NUXT_CREW_API_TOKEN", body["message"])
	assert.Equal(t, int32(0), atomic.LoadInt32(&posts))
}

func TestImportRejectsBadRequests(t *testing.T) {
	setCrewEnv(t, "http://127.0.0.1:1", "token")
	app := newTestApp(nil)

	resp, body := postJSON(t, app, "/api/crew/jobs", `{"rows":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "rows[] required", body["message"])

	resp, body = postJSON(t, app, "/api/crew/widgets", `{"rows":[{"a":"b"}]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Unknown import type", body["message"])

	resp, body = postJSON(t, app, "/api/crew/staff", `{"rows":[{"Name":"Ann Lee","Password":"secret1"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, `CSV must include a column named "Email".`, body["message"])
	assert.Equal(t, true, strings.Contains(body["hint"].(string), "header row matches the template"))

	resp, _ = postJSON(t, app, "/api/crew/jobs", `{"rows":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportJSONRows(t *testing.T) {
	var posts int32
	server := crewServer(t, &posts)
	setCrewEnv(t, server.URL, "token")

	resp, body := postJSON(t, newTestApp(nil), "/api/crew/equipment", `{"rows":[{"Name":"A","Serial Number":1234},{"Name":"A"}]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posts))

	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["total"])
	assert.Equal(t, float64(1), summary["ok"])
	assert.Equal(t, float64(1), summary["skippedDuplicates"])
	assert.Equal(t, float64(855), summary["company_id_used"])
	assert.Equal(t, "✅ Equipment — Success: created 1 (1 duplicate skipped).", summary["message"])

	results := body["results"].([]interface{})
	assert.Equal(t, 2, len(results))
	assert.Equal(t, "skipped_duplicate", results[1].(map[string]interface{})["status"])
}

func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	assert.NilError(t, err)
	_, err = io.WriteString(part, content)
	assert.NilError(t, err)
	assert.NilError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadCSV(t *testing.T) {
	var posts int32
	server := crewServer(t, &posts)
	setCrewEnv(t, server.URL, "token")
	app := newTestApp(nil)

	csv := "Jobs Import Template,\nJob Name,Job Number\nNorth,100\n,\nSouth,\n"
	resp, err := app.Test(uploadRequest(t, "/api/crew/jobs/upload", "jobs.csv", csv), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&posts))

	var body map[string]interface{}
	assert.NilError(t, json.NewDecoder(resp.Body).Decode(&body))
	results := body["results"].([]interface{})
	assert.Equal(t, float64(3), results[0].(map[string]interface{})["line"])
	assert.Equal(t, float64(5), results[1].(map[string]interface{})["line"])

	resp, err = app.Test(uploadRequest(t, "/api/crew/jobs/upload", "jobs.txt", csv), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAsyncImport(t *testing.T) {
	setCrewEnv(t, "http://127.0.0.1:1", "token")

	resp, body := postJSON(t, newTestApp(nil), "/api/crew/jobs?async=true", `{"rows":[{"Job Name":"North"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	queue := &fakeQueue{}
	resp, body = postJSON(t, newTestApp(queue), "/api/crew/Jobs?async=true", `{"rows":[{"Job Name":"North"}],"first_line":3}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, len(queue.tasks))
	assert.Equal(t, "import:run", queue.tasks[0].Type())

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "job-1", data["job_id"])
	assert.Equal(t, float64(1), data["rows"])

	var payload map[string]interface{}
	assert.NilError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	assert.Equal(t, "jobs", payload["entity"])
	assert.Equal(t, data["batch_id"], payload["batch_id"])
	assert.Equal(t, float64(3), payload["first_line"])

	// batch-level checks run before anything is queued
	resp, _ = postJSON(t, newTestApp(queue), "/api/crew/staff?async=true", `{"rows":[{"Name":"Ann Lee"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1, len(queue.tasks))
}

func TestTemplateDownload(t *testing.T) {
	app := newTestApp(nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/templates/equipment", nil), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="equipment_template.csv"`, resp.Header.Get("Content-Disposition"))
	content, err := io.ReadAll(resp.Body)
	assert.NilError(t, err)
	assert.Equal(t, true, strings.Contains(string(content), "Equipment name,ID,Serial Number,Notes"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/templates/equipment?format=xlsx", nil), -1)
	assert.NilError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/templates/widgets", nil), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/imports/template", nil), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/imports/template?entity=widgets", nil), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body utils.Response
	assert.NilError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Unknown template", body.Message)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/imports/template?entity=staff", nil), -1)
	assert.NilError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
