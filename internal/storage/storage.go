package storage

import "context"

// UploadResult identifies a stored media asset.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ObjectStorage is the media-asset collaborator consumed by registration:
// upload a locally staged file into a folder, delete by key.
type ObjectStorage interface {
	Upload(ctx context.Context, localPath, folder string) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}
