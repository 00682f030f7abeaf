package models

import "time"

type InitiateUploadRequest struct {
	Filename      string `json:"filename"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	ContentType   string `json:"contentType,omitempty"`
	BatchID       string `json:"batchId,omitempty"`
}

type InitiateUploadResponse struct {
	PhotoID          string `json:"photoId"`
	UploadURL        string `json:"uploadUrl"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
	BatchID          string `json:"batchId"`
}

type UploadCompleteRequest struct {
	FileSizeBytes int64  `json:"fileSizeBytes"`
	ETag          string `json:"eTag,omitempty"`
}

type UploadFailedRequest struct {
	ErrorMessage string `json:"errorMessage"`
}

type BatchCompleteItem struct {
	PhotoID       string `json:"photoId"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	ETag          string `json:"eTag,omitempty"`
}

type BatchCompleteRequest struct {
	Items []BatchCompleteItem `json:"items"`
}

type BatchCompleteResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

type PhotoStatusDto struct {
	ID               string      `json:"id"`
	OriginalFilename string      `json:"originalFilename"`
	Status           PhotoStatus `json:"status"`
	ErrorMessage     *string     `json:"errorMessage"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

type BatchStatusResponse struct {
	BatchID        string           `json:"batchId"`
	TotalCount     int              `json:"totalCount"`
	CompletedCount int              `json:"completedCount"`
	FailedCount    int              `json:"failedCount"`
	Photos         []PhotoStatusDto `json:"photos"`
}
