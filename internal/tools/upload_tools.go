package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pixlift/pixlift/internal/service"
	"github.com/pixlift/pixlift/pkg/api"
)

// RegisterUploadTools registers the four pixlift tools against a service.
func RegisterUploadTools(r *Registry, svc *service.Service) error {
	for _, t := range []Tool{
		newUploadTool(svc),
		newBatchUploadTool(svc),
		newListBucketsTool(svc),
		newServerInfoTool(svc),
	} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func newUploadTool(svc *service.Service) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path":     map[string]any{"type": "string", "description": "Path to the image file to upload"},
			"bucket_name":   map[string]any{"type": "string", "description": "S3 bucket name (defaults to the configured bucket)"},
			"key":           map[string]any{"type": "string", "description": "S3 object key (auto-generated if not provided)"},
			"optimize":      map[string]any{"type": "boolean", "description": "Enable image optimization", "default": true},
			"quality":       map[string]any{"type": "integer", "description": "Compression quality (1-100)", "minimum": 1, "maximum": 100, "default": 80},
			"folder_prefix": map[string]any{"type": "string", "description": "S3 folder prefix"},
		},
		"required": []string{"file_path"},
	}
	return NewFuncTool("upload_image_to_s3",
		"Upload a single image file to S3 and return a public URL.",
		schema,
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var req api.UploadRequest
			if err := decodeArgs(args, &req); err != nil {
				return nil, err
			}
			return svc.Upload(ctx, req), nil
		})
}

func newBatchUploadTool(svc *service.Service) Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_paths":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1, "description": "List of image file paths to upload"},
			"bucket_name":    map[string]any{"type": "string", "description": "S3 bucket name (defaults to the configured bucket)"},
			"folder_prefix":  map[string]any{"type": "string", "description": "S3 folder prefix"},
			"optimize":       map[string]any{"type": "boolean", "description": "Enable image optimization", "default": true},
			"quality":        map[string]any{"type": "integer", "description": "Compression quality (1-100)", "minimum": 1, "maximum": 100, "default": 80},
			"max_concurrent": map[string]any{"type": "integer", "description": "Maximum concurrent uploads", "minimum": 1, "maximum": 10, "default": 5},
		},
		"required": []string{"file_paths"},
	}
	return NewFuncTool("batch_upload_images",
		"Upload multiple images in parallel to S3.",
		schema,
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var req api.BatchUploadRequest
			if err := decodeArgs(args, &req); err != nil {
				return nil, err
			}
			return svc.BatchUpload(ctx, req), nil
		})
}

func newListBucketsTool(svc *service.Service) Tool {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	return NewFuncTool("list_s3_buckets",
		"List all accessible S3 buckets.",
		schema,
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			return svc.ListBuckets(ctx), nil
		})
}

func newServerInfoTool(svc *service.Service) Tool {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	return NewFuncTool("get_server_info",
		"Get server information and status.",
		schema,
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			return svc.ServerInfo(ctx), nil
		})
}

// decodeArgs parses tool arguments strictly, rejecting unknown fields so a
// misspelled argument fails loudly instead of silently defaulting.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
