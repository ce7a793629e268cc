package fetch

import "errors"

var (
	ErrVideoUnavailable = errors.New("video unavailable")
	ErrVideoPrivate     = errors.New("video is private")
	ErrAgeRestricted    = errors.New("content is age-restricted")
	ErrNetwork          = errors.New("network error")
	ErrURLNotSupported  = errors.New("url not supported")
	ErrDownloadFailed   = errors.New("download failed")
	ErrOutputMissing    = errors.New("downloaded file not found")
)
