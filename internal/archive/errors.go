package archive

import "fmt"

// InvalidSchemeError is returned when a download URL is not http or https.
// It is raised before any network access.
type InvalidSchemeError struct {
	URL    string
	Scheme string
}

func (e *InvalidSchemeError) Error() string {
	return fmt.Sprintf("invalid URL scheme %q in %s: must be http or https", e.Scheme, e.URL)
}

// DownloadError wraps network and HTTP status failures
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError wraps failures to read or unpack an archive
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
