// Package api defines the request and response types of the pixlift tool
// surface. These are the wire shapes; validation and defaulting happen in the
// service layer.
package api

// UploadRequest is the input of the upload_image_to_s3 tool.
type UploadRequest struct {
	FilePath     string `json:"file_path"`
	BucketName   string `json:"bucket_name,omitempty"`
	Key          string `json:"key,omitempty"`
	Optimize     *bool  `json:"optimize,omitempty"`
	Quality      int    `json:"quality,omitempty"`
	FolderPrefix string `json:"folder_prefix,omitempty"`
}

// UploadResponse is the output of the upload_image_to_s3 tool.
type UploadResponse struct {
	Success        bool              `json:"success"`
	URL            string            `json:"url,omitempty"`
	Key            string            `json:"key,omitempty"`
	Bucket         string            `json:"bucket,omitempty"`
	Size           int64             `json:"size,omitempty"`
	ContentType    string            `json:"content_type,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Error          string            `json:"error,omitempty"`
	ProcessingTime float64           `json:"processing_time"`
}

// BatchUploadRequest is the input of the batch_upload_images tool.
type BatchUploadRequest struct {
	FilePaths     []string `json:"file_paths"`
	BucketName    string   `json:"bucket_name,omitempty"`
	FolderPrefix  string   `json:"folder_prefix,omitempty"`
	Optimize      *bool    `json:"optimize,omitempty"`
	Quality       int      `json:"quality,omitempty"`
	MaxConcurrent int      `json:"max_concurrent,omitempty"`
}

// FileResult is one entry in a batch response's detail list, aligned to the
// position of the file in the original request.
type FileResult struct {
	FilePath string `json:"file_path"`
	Success  bool   `json:"success"`
	URL      string `json:"url,omitempty"`
	Key      string `json:"key,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OptimizationStats summarizes the optimize phase of a batch upload.
type OptimizationStats struct {
	TotalFiles         int     `json:"total_files"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	TotalOriginalSize  int64   `json:"total_original_size"`
	TotalOptimizedSize int64   `json:"total_optimized_size"`
	CompressionRatio   float64 `json:"compression_ratio"`
	SpaceSaved         int64   `json:"space_saved"`
}

// BatchUploadResponse is the output of the batch_upload_images tool.
type BatchUploadResponse struct {
	Success           bool               `json:"success"`
	URLs              []string           `json:"urls"`
	Errors            []string           `json:"errors"`
	TotalFiles        int                `json:"total_files"`
	SuccessfulUploads int                `json:"successful_uploads"`
	FailedUploads     int                `json:"failed_uploads"`
	ProcessingTime    float64            `json:"processing_time"`
	OptimizationStats *OptimizationStats `json:"optimization_stats,omitempty"`
	Results           []FileResult       `json:"results"`
}

// BucketListResponse is the output of the list_s3_buckets tool.
type BucketListResponse struct {
	Success bool     `json:"success"`
	Buckets []string `json:"buckets"`
	Count   int      `json:"count"`
	Error   string   `json:"error,omitempty"`
}

// ServerInfo is the output of the get_server_info tool.
type ServerInfo struct {
	Name                 string   `json:"name"`
	Version              string   `json:"version"`
	Status               string   `json:"status"`
	AWSRegion            string   `json:"aws_region,omitempty"`
	BucketName           string   `json:"bucket_name,omitempty"`
	SupportedFormats     []string `json:"supported_formats"`
	MaxFileSize          int64    `json:"max_file_size"`
	MaxConcurrentUploads int      `json:"max_concurrent_uploads"`
	UploadsCompleted     int64    `json:"uploads_completed"`
	BytesUploaded        int64    `json:"bytes_uploaded"`
}
