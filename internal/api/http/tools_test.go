package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pixlift/pixlift/internal/imageproc"
	"github.com/pixlift/pixlift/internal/keys"
	"github.com/pixlift/pixlift/internal/observability"
	"github.com/pixlift/pixlift/internal/service"
	"github.com/pixlift/pixlift/internal/storage"
	"github.com/pixlift/pixlift/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "test-bucket")
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}
	svc := service.New(store, imageproc.NewOptimizer(), keys.NewGenerator(), observability.NewUploadStats(), nil, zerolog.Nop())
	reg := tools.NewRegistry()
	if err := tools.RegisterUploadTools(reg, svc); err != nil {
		t.Fatalf("failed to register tools: %v", err)
	}
	return reg
}

func TestToolsHandler_List(t *testing.T) {
	h := NewToolsHandler(newTestRegistry(t))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tools", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ToolListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 4 {
		t.Errorf("expected 4 tools, got %d", resp.Count)
	}

	names := map[string]bool{}
	for _, d := range resp.Tools {
		names[d.Name] = true
		if d.InputSchema == nil {
			t.Errorf("tool %s has no input schema", d.Name)
		}
	}
	for _, want := range []string{"upload_image_to_s3", "batch_upload_images", "list_s3_buckets", "get_server_info"} {
		if !names[want] {
			t.Errorf("tool %s missing from listing", want)
		}
	}
}

func TestToolsHandler_MethodNotAllowed(t *testing.T) {
	h := NewToolsHandler(newTestRegistry(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tools", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func callTool(t *testing.T, h http.Handler, name string, args any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tools/call", bytes.NewReader(body)))
	return rec
}

func TestToolCallHandler_ServerInfo(t *testing.T) {
	h := NewToolCallHandler(newTestRegistry(t))
	rec := callTool(t, h, "get_server_info", map[string]any{})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Name   string `json:"name"`
		Result struct {
			Name       string `json:"name"`
			Status     string `json:"status"`
			BucketName string `json:"bucket_name"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Name != "pixlift" || resp.Result.BucketName != "test-bucket" {
		t.Errorf("unexpected server info: %+v", resp.Result)
	}
}

func TestToolCallHandler_UnknownTool(t *testing.T) {
	h := NewToolCallHandler(newTestRegistry(t))
	rec := callTool(t, h, "no_such_tool", map[string]any{})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestToolCallHandler_BadArguments(t *testing.T) {
	h := NewToolCallHandler(newTestRegistry(t))
	rec := callTool(t, h, "upload_image_to_s3", map[string]any{"unknown_arg": true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown argument, got %d", rec.Code)
	}
}

func TestToolCallHandler_ValidationInsideResult(t *testing.T) {
	// Operation-level failures ride inside a 200 result with success=false;
	// only transport and argument errors produce HTTP error statuses.
	h := NewToolCallHandler(newTestRegistry(t))
	rec := callTool(t, h, "upload_image_to_s3", map[string]any{"file_path": "/tmp/absent.png"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Result struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Result.Success || resp.Result.Error == "" {
		t.Errorf("expected an in-result failure, got %+v", resp.Result)
	}
}

func TestToolCallHandler_MissingName(t *testing.T) {
	h := NewToolCallHandler(newTestRegistry(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tools/call", bytes.NewReader([]byte(`{}`))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
