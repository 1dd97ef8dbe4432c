package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfind/internal/document"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/ingest"
	"github.com/Aman-CERP/docfind/internal/loader"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
)

const helloDoc = `{"Pages":[{"Texts":[{"x":0,"y":0,"w":5,"R":[{"T":"Hello"}]},{"x":10,"y":0,"w":5,"R":[{"T":"World"}]}]}]}`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	repo, err := store.NewMemoryRepository(10)
	require.NoError(t, err)
	svc := ingest.New(repo, loader.New(), document.NewExtractor(), search.NewEngine(search.DefaultConfig()),
		ingest.WithLimits(ingest.Limits{MaxBytes: 4096, AllowedTypes: []string{"application/pdf", "application/json"}}))
	return NewServer(svc, opts...)
}

func uploadRequest(t *testing.T, name, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func upload(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, body := do(t, h, uploadRequest(t, "hello.json", "application/json", []byte(helloDoc)))
	require.Equal(t, http.StatusOK, rec.Code, body)
	return body["fileId"].(string)
}

func searchRequest(t *testing.T, req SearchRequest) *http.Request {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// =============================================================================
// Banner endpoints
// =============================================================================

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t)
	s.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	h := s.Handler()

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PDF Search API is running", body["message"])
	assert.Equal(t, "/api/files/:id", body["endpoints"].(map[string]any)["getFile"])

	_, body = do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2026-03-04T05:06:07Z", body["timestamp"])
}

func TestCORSHeaders(t *testing.T) {
	h := newTestServer(t, WithCORSOrigin("https://app.example")).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/search", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// Upload and file lookup
// =============================================================================

func TestUpload_ThenGetFile(t *testing.T) {
	// Given: an uploaded document
	h := newTestServer(t).Handler()
	rec, body := do(t, h, uploadRequest(t, "hello.json", "application/json", []byte(helloDoc)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "File uploaded and parsed successfully", body["message"])
	assert.Equal(t, "hello.json", body["fileName"])
	assert.Equal(t, float64(1), body["pageCount"])
	id := body["fileId"].(string)

	// When: fetching it by id
	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/api/files/"+id, nil))

	// Then: the summary matches the upload
	require.Equal(t, http.StatusOK, rec.Code)
	file := body["file"].(map[string]any)
	assert.Equal(t, id, file["id"])
	assert.Equal(t, "hello.json", file["name"])
	assert.Equal(t, float64(1), file["pageCount"])
	assert.NotEmpty(t, file["uploadDate"])

	_, body = do(t, h, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.Len(t, body["files"], 1)
}

func TestUpload_Rejections(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"wrong type", uploadRequest(t, "a.txt", "text/plain", []byte("hi")), 400, dferrors.ErrCodeUnsupportedType},
		{"too large", uploadRequest(t, "a.pdf", "application/pdf", bytes.Repeat([]byte("x"), 5000)), 413, dferrors.ErrCodeFileTooLarge},
		{"corrupt", uploadRequest(t, "a.pdf", "application/pdf", []byte("%PDF-1.4 nonsense")), 422, dferrors.ErrCodeFileCorrupt},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/files/upload", strings.NewReader("x")), 400, dferrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["error"].(map[string]any)["code"])
		})
	}
}

func TestGetFile_NotFound(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/api/files/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", body["error"].(map[string]any)["message"])
}

func TestDeleteFile(t *testing.T) {
	h := newTestServer(t).Handler()
	id := upload(t, h)

	rec, _ := do(t, h, httptest.NewRequest(http.MethodDelete, "/api/files/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/api/files/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_ReturnsResults(t *testing.T) {
	h := newTestServer(t).Handler()
	id := upload(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, searchRequest(t, SearchRequest{Query: "world", FileID: id}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, "hello.json", resp.FileName)
	assert.Equal(t, "World", resp.Results[0].Highlight)
	assert.Equal(t, &search.Position{X: 10, Y: 0}, resp.Results[0].Position)
}

func TestSearch_NoMatchesIsEmptyArray(t *testing.T) {
	h := newTestServer(t).Handler()
	id := upload(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, searchRequest(t, SearchRequest{Query: "absent", FileID: id}))

	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), `"totalResults":0`)
}

func TestSearch_Errors(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name    string
		req     SearchRequest
		status  int
		message string
	}{
		{"missing query", SearchRequest{FileID: "x"}, 400, "Search query is required"},
		{"missing file id", SearchRequest{Query: "q"}, 400, "File ID is required"},
		{"unknown file", SearchRequest{Query: "q", FileID: "nope"}, 404, "File not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, searchRequest(t, tt.req))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, body["error"].(map[string]any)["message"])
		})
	}

	rec, _ := do(t, h, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Serve
// =============================================================================

func TestServe_StopsOnCancel(t *testing.T) {
	// Given: a server on an ephemeral port
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	// When: it answers a request and is then cancelled
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	cancel()

	// Then: Serve returns cleanly
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAndServe_BadAddress(t *testing.T) {
	err := newTestServer(t).ListenAndServe(context.Background(), "256.0.0.1:bad")

	assert.True(t, dferrors.HasCode(err, dferrors.ErrCodeListenFailed))
}
