package artifacts

import "errors"

var (
	// ErrUploadFailed is returned when an upload to object storage fails
	ErrUploadFailed = errors.New("artifact upload failed")

	// ErrDownloadFailed is returned when a download from object storage fails
	ErrDownloadFailed = errors.New("artifact download failed")

	// ErrDecompressionFailed is returned when an archive cannot be unpacked
	ErrDecompressionFailed = errors.New("artifact decompression failed")

	// ErrChecksumMismatch is returned when a downloaded archive does not match
	// the checksum recorded at upload
	ErrChecksumMismatch = errors.New("artifact checksum mismatch")

	// ErrNotFound is returned when no archive exists for a key
	ErrNotFound = errors.New("artifact not found")
)
