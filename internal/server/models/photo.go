package models

import "time"

type PhotoDto struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"originalFilename"`
	FileSizeBytes    int64     `json:"fileSizeBytes"`
	DownloadURL      string    `json:"downloadUrl"`
	UploadedAt       time.Time `json:"uploadedAt"`
	Tags             []string  `json:"tags"`
}

type PhotoListResponse struct {
	Photos     []PhotoDto `json:"photos"`
	PageNumber int        `json:"pageNumber"`
	PageSize   int        `json:"pageSize"`
	TotalCount int64      `json:"totalCount"`
}

type UpdateTagsRequest struct {
	Tags []string `json:"tags"`
}
