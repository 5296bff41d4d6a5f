package camera

import "errors"

// Sentinel errors for camera operations.
var (
	// ErrCameraNotFound is returned when no webcam matches the name.
	ErrCameraNotFound = errors.New("camera: not found")

	// ErrNoSnapshotURL is returned when a webcam has no snapshot URL.
	ErrNoSnapshotURL = errors.New("camera: no snapshot url")

	// ErrSnapshotFailed is returned when the snapshot fetch fails.
	ErrSnapshotFailed = errors.New("camera: snapshot fetch failed")

	// ErrNoThumbnail is returned when the current print has no
	// thumbnail, or no file is printing.
	ErrNoThumbnail = errors.New("camera: no thumbnail available")
)
