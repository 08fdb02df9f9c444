// Package errdefs holds the error kinds surfaced by the asset pool and the
// waveform cache. Callers inspect them with errors.Is; every error returned by
// those packages wraps exactly one of these sentinels.
package errdefs

import "errors"

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrNotFound            = errors.New("entry not found")
	ErrInUse               = errors.New("entry is in use")
	ErrOperationInProgress = errors.New("operation already in progress")
	ErrIOFailure           = errors.New("i/o failure")
	ErrUnsupportedFormat   = errors.New("unsupported audio format")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrCancelled           = errors.New("operation cancelled")
	ErrAnalysisFailed      = errors.New("analysis failed")
)

// Kind returns the sentinel wrapped by err, or nil if err is not one of ours.
func Kind(err error) error {
	for _, kind := range []error{
		ErrCancelled,
		ErrFileNotFound,
		ErrNotFound,
		ErrInUse,
		ErrOperationInProgress,
		ErrUnsupportedFormat,
		ErrInvalidArgument,
		ErrAnalysisFailed,
		ErrIOFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
