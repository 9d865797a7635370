package utils

const (
	StorageProviderFile = "file"
	StorageProviderGCS  = "gcs"
)
