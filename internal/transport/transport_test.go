package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batch-edit-engine/internal/errors"
	"batch-edit-engine/internal/models"
)

// fakeService records calls and returns canned responses.
type fakeService struct {
	lastApply *models.ApplyEditsRequest
}

func (f *fakeService) ApplyEdits(req models.ApplyEditsRequest) (*models.ApplyEditsResponse, *models.ErrorDetail) {
	f.lastApply = &req
	return &models.ApplyEditsResponse{Applied: !req.DryRun, HistoryID: "op-test"}, nil
}

func (f *fakeService) ReadFile(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail) {
	if req.Name == "missing.txt" {
		return nil, errors.NewFileNotFoundError(req.Name, "read")
	}
	return &models.ReadFileResponse{Content: "line1\nline2", TotalLines: 2}, nil
}

func (f *fakeService) ListFiles(req models.ListFilesRequest) (*models.ListFilesResponse, *models.ErrorDetail) {
	return &models.ListFilesResponse{TotalCount: 0, Directory: "/work"}, nil
}

func (f *fakeService) HistoryList(req models.HistoryListRequest) (*models.HistoryListResponse, *models.ErrorDetail) {
	return &models.HistoryListResponse{}, nil
}

func (f *fakeService) HistoryRestore(req models.HistoryRestoreRequest) (*models.HistoryRestoreResponse, *models.ErrorDetail) {
	return nil, errors.NewHistoryNotFoundError(req.EntryID)
}

func newHTTPTestServer(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	svc := &fakeService{}
	handler := NewHTTPHandler(svc)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	srv, _ := newHTTPTestServer(t)
	resp, err := http.Get(srv.URL + "/read_file")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPUnsupportedMediaType(t *testing.T) {
	srv, _ := newHTTPTestServer(t)
	resp, err := http.Post(srv.URL+"/read_file", "text/plain", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestHTTPInvalidJSON(t *testing.T) {
	srv, _ := newHTTPTestServer(t)
	resp := postJSON(t, srv.URL+"/read_file", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, errors.CodeParseError, errResp.Error.Code)
}

func TestHTTPUnknownFieldRejected(t *testing.T) {
	srv, _ := newHTTPTestServer(t)
	resp := postJSON(t, srv.URL+"/read_file", `{"bogus_field": true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPReadFileSuccess(t *testing.T) {
	srv, _ := newHTTPTestServer(t)
	resp := postJSON(t, srv.URL+"/read_file", `{"name": "a.txt"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.ReadFileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "line1\nline2", body.Content)
	assert.Equal(t, 2, body.TotalLines)
}

func TestHTTPServiceErrorMapping(t *testing.T) {
	srv, _ := newHTTPTestServer(t)

	resp := postJSON(t, srv.URL+"/read_file", `{"name": "missing.txt"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/history/restore", `{"entry_id": "op-gone"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, errors.CodeHistoryNotFound, errResp.Error.Code)
}

func TestHTTPPreviewForcesDryRun(t *testing.T) {
	srv, svc := newHTTPTestServer(t)
	resp := postJSON(t, srv.URL+"/preview_edits", `{"edits": []}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.lastApply)
	assert.True(t, svc.lastApply.DryRun)
}

func TestHTTPHealthCheck(t *testing.T) {
	srv, _ := newHTTPTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func runStdio(t *testing.T, input string) []models.JSONRPCResponse {
	t.Helper()
	h := NewStdioHandler(&fakeService{})
	var out bytes.Buffer
	require.NoError(t, h.Start(strings.NewReader(input), &out))

	var responses []models.JSONRPCResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp models.JSONRPCResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestStdioParseError(t *testing.T) {
	responses := runStdio(t, "{not json}\n")
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, errors.CodeParseError, responses[0].Error.Code)
	assert.Nil(t, responses[0].ID)
}

func TestStdioInvalidVersion(t *testing.T) {
	responses := runStdio(t, `{"jsonrpc": "1.0", "id": 1, "method": "read_file"}`+"\n")
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, errors.CodeInvalidRequest, responses[0].Error.Code)
}

func TestStdioMethodNotFound(t *testing.T) {
	responses := runStdio(t, `{"jsonrpc": "2.0", "id": 7, "method": "no_such_method"}`+"\n")
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, errors.CodeMethodNotFound, responses[0].Error.Code)
	assert.Equal(t, "no_such_method", responses[0].Error.Data.Operation)
	assert.Equal(t, float64(7), responses[0].ID)
}

func TestStdioReadFileSuccess(t *testing.T) {
	responses := runStdio(t, `{"jsonrpc": "2.0", "id": "r1", "method": "read_file", "params": {"name": "a.txt"}}`+"\n")
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)
	assert.Equal(t, "r1", responses[0].ID)

	result, ok := responses[0].Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "line1\nline2", result["content"])
}

func TestStdioSkipsBlankLinesAndHandlesMultipleRequests(t *testing.T) {
	input := "\n" +
		`{"jsonrpc": "2.0", "id": 1, "method": "list_files"}` + "\n" +
		"   \n" +
		`{"jsonrpc": "2.0", "id": 2, "method": "history_list"}` + "\n"
	responses := runStdio(t, input)
	require.Len(t, responses, 2)
	assert.Nil(t, responses[0].Error)
	assert.Nil(t, responses[1].Error)
	assert.Equal(t, float64(1), responses[0].ID)
	assert.Equal(t, float64(2), responses[1].ID)
}
