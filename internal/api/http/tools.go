package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pixlift/pixlift/internal/tools"
)

// ToolDescriptor is the wire shape of one tool listing entry.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolListResponse is the response of GET /v1/tools.
type ToolListResponse struct {
	Tools []ToolDescriptor `json:"tools"`
	Count int              `json:"count"`
}

// ToolCallRequest is the request body of POST /v1/tools/call.
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse wraps a tool's result for the wire.
type ToolCallResponse struct {
	Name      string `json:"name"`
	Result    any    `json:"result"`
	RequestID string `json:"request_id,omitempty"`
}

// ToolsHandler serves the tool listing endpoint.
type ToolsHandler struct {
	registry *tools.Registry
}

// NewToolsHandler creates a handler listing the registry's tools.
func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

// ServeHTTP handles GET /v1/tools.
func (h *ToolsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	list := h.registry.List()
	resp := ToolListResponse{Count: len(list)}
	for _, t := range list {
		resp.Tools = append(resp.Tools, ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ToolCallHandler executes tool calls.
type ToolCallHandler struct {
	registry *tools.Registry
}

// NewToolCallHandler creates a handler dispatching into the registry.
func NewToolCallHandler(registry *tools.Registry) *ToolCallHandler {
	return &ToolCallHandler{registry: registry}
}

// ServeHTTP handles POST /v1/tools/call.
func (h *ToolCallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req ToolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", requestID)
		return
	}

	if _, ok := h.registry.Get(req.Name); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool: %s", req.Name), requestID)
		return
	}

	result, err := h.registry.Execute(r.Context(), req.Name, req.Arguments)
	if err != nil {
		// Tool operations report their own failures inside the result; an
		// error here means the arguments did not decode.
		writeError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	writeJSON(w, http.StatusOK, ToolCallResponse{
		Name:      req.Name,
		Result:    result,
		RequestID: requestID,
	})
}
