package crew

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/assert"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", "secret-token", 2*time.Second), server
}

func TestRequestSendsBearerAndJSON(t *testing.T) {
	var gotAuth, gotType, gotPath string
	var gotBody map[string]interface{}
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":42}}`))
	})

	var out map[string]interface{}
	err := client.Post(context.Background(), "/api/jobs", map[string]interface{}{"name": "North"}, &out)
	assert.NilError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "/api/jobs", gotPath)
	assert.Equal(t, "North", gotBody["name"])
	assert.Equal(t, float64(42), out["data"].(map[string]interface{})["id"])
}

func TestSuccessWithTextBody(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("Created\n"))
	})

	var out interface{}
	err := client.Post(context.Background(), "/api/equipment", map[string]interface{}{"name": "Loader"}, &out)
	assert.NilError(t, err)
	assert.Equal(t, "Created", out)

	var typed map[string]interface{}
	assert.NilError(t, client.Post(context.Background(), "/api/equipment", map[string]interface{}{"name": "Loader"}, &typed))
	assert.Assert(t, typed == nil)
}

func TestErrorNormalization(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"message", 422, `{"message":"The name field is required."}`, "The name field is required."},
		{"nested error", 400, `{"error":{"message":"Bad company"}}`, "Bad company"},
		{"error string", 403, `{"error":"Forbidden for token"}`, "Forbidden for token"},
		{"validation map", 422, `{"errors":{"email":["The email has already been taken."]}}`, "The email has already been taken."},
		{"plain text", 500, `Duplicate entry 'a@b.c'`, "Duplicate entry 'a@b.c'"},
		{"html page", 502, `<html>bad gateway</html>`, "Bad Gateway"},
		{"empty body", 404, ``, "Not Found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			err := client.Post(context.Background(), "/api/users", map[string]string{}, nil)
			var upstreamErr *UpstreamError
			assert.Equal(t, true, errors.As(err, &upstreamErr))
			assert.Equal(t, tc.status, upstreamErr.Status)
			assert.Equal(t, tc.message, upstreamErr.Message)
		})
	}
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewClient(url, "t", time.Second).Get(context.Background(), "/api/users", nil)
	var upstreamErr *UpstreamError
	assert.Equal(t, true, errors.As(err, &upstreamErr))
	assert.Equal(t, 0, upstreamErr.Status)
	assert.Equal(t, true, len(upstreamErr.Message) > 0)
	assert.Equal(t, upstreamErr.Message, upstreamErr.Error())
}

func TestCancelledContextSendsNothing(t *testing.T) {
	var hits int32
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Get(ctx, "/api/users", nil)
	assert.Assert(t, err != nil)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestResolveCompanyID(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1,"company_id":"855","email":"a@b.c"},{"id":2,"company_id":9}]}`))
	})
	id, err := client.ResolveCompanyID(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, int64(855), id)

	client, _ = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"company_id":12}]`))
	})
	id, err = client.ResolveCompanyID(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, int64(12), id)
}

func TestResolveCompanyIDFailures(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	_, err := client.ResolveCompanyID(context.Background())
	var resolutionErr *ResolutionError
	assert.Equal(t, true, errors.As(err, &resolutionErr))
	assert.Equal(t, "Unable to resolve company_id from /api/users", err.Error())

	client, _ = newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	})
	_, err = client.ResolveCompanyID(context.Background())
	assert.Equal(t, true, errors.As(err, &resolutionErr))
	assert.Equal(t, http.StatusUnauthorized, resolutionErr.Status)
	assert.Equal(t, "Unable to resolve company_id from /api/users: HTTP 401: Unauthenticated.", err.Error())
}

func TestExistingEmails(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":3,"name":"Pat","email":" Pat@Example.com "},{"id":4,"email":""}]}`))
	})
	emails, err := client.ExistingEmails(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, 1, len(emails))
	assert.Equal(t, "Pat", emails["pat@example.com"].Name)
}

func TestFindOrCreateCompany(t *testing.T) {
	var posted map[string]interface{}
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/customer-companies" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"data":[{"id":5,"name":"Acme"}]}`))
		case r.URL.Path == "/api/customer-companies" && r.Method == http.MethodPost:
			_ = json.NewDecoder(r.Body).Decode(&posted)
			_, _ = w.Write([]byte(`{"data":{"id":6}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	id, err := client.FindOrCreateCompany(context.Background(), " acme ", 855)
	assert.NilError(t, err)
	assert.Equal(t, int64(5), id)
	assert.Assert(t, posted == nil)

	id, err = client.FindOrCreateCompany(context.Background(), "Globex", 855)
	assert.NilError(t, err)
	assert.Equal(t, int64(6), id)
	assert.Equal(t, "Globex", posted["name"])
	assert.Equal(t, float64(855), posted["company_id"])

	id, err = client.FindOrCreateCompany(context.Background(), "  ", 855)
	assert.NilError(t, err)
	assert.Equal(t, int64(0), id)
}
