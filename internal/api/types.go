package api

import (
	"time"

	"mue/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// BackgroundResponse is a stored background as returned by the API.
type BackgroundResponse = models.Background

// AddURLRequest stores a remote image by reference.
type AddURLRequest struct {
	URL    string `json:"url"`
	Folder string `json:"folder,omitempty"`
}

// UploadFailure describes one file the server could not store.
type UploadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// UploadResponse is the outcome of a multipart upload.
type UploadResponse struct {
	Stored  []BackgroundResponse `json:"stored"`
	Failed  []UploadFailure      `json:"failed,omitempty"`
	Aborted bool                 `json:"aborted,omitempty"`
}

// IDsRequest addresses several backgrounds at once, either by id or by
// position in the list as sorted by Sort.
type IDsRequest struct {
	IDs     []int64 `json:"ids,omitempty"`
	Indices []int   `json:"indices,omitempty"`
	Sort    string  `json:"sort,omitempty"`
}

// DeleteResponse reports how many backgrounds were removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// BackgroundUpdateRequest renames a background or moves it to another folder.
type BackgroundUpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Folder *string `json:"folder,omitempty"`
}

// PickResponse is a randomly chosen background. Background is nil when the
// library has nothing eligible.
type PickResponse struct {
	Background *BackgroundResponse `json:"background"`
	Video      bool                `json:"video"`
}

// BackfillResponse reports how many records gained metadata.
type BackfillResponse struct {
	Filled int `json:"filled"`
}

// StorageResponse summarises storage consumption.
type StorageResponse struct {
	Count     int     `json:"count"`
	Used      int64   `json:"used"`
	Quota     int64   `json:"quota"`
	Percent   float64 `json:"percent"`
	UsedText  string  `json:"usedText"`
	QuotaText string  `json:"quotaText"`
	Persisted bool    `json:"persisted"`
}

// PersistResponse is the result of a persistence request.
type PersistResponse struct {
	Granted bool `json:"granted"`
}

// ImportResponse reports how many backgrounds a backup restored.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// LegacyImportRequest carries the customBackground value an older front end
// kept in local storage: a JSON array of urls or one bare url.
type LegacyImportRequest struct {
	Value string `json:"value"`
}

// LegacyImportResponse reports whether the legacy list was migrated.
type LegacyImportResponse struct {
	Migrated bool `json:"migrated"`
	Count    int  `json:"count"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status       string     `json:"status"`
	Time         time.Time  `json:"time"`
	Subscribers  int        `json:"subscribers"`
	NextBackfill *time.Time `json:"nextBackfill,omitempty"`
}
