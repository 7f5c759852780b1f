package remote

import "fmt"

// ResolutionErrorKind discriminates why a reference could not be resolved.
type ResolutionErrorKind int

const (
	// UnsupportedScheme means no resolver strategy is registered for the
	// reference's scheme.
	UnsupportedScheme ResolutionErrorKind = iota
	// NotFound means the referenced resource does not exist.
	NotFound
	// RetrievalFailed means the resource could not be transferred, including
	// timeouts and partial transfers.
	RetrievalFailed
)

func (k ResolutionErrorKind) String() string {
	switch k {
	case UnsupportedScheme:
		return "UnsupportedScheme"
	case NotFound:
		return "NotFound"
	case RetrievalFailed:
		return "RetrievalFailed"
	}
	return fmt.Sprintf("ResolutionErrorKind(%d)", int(k))
}

// ResolutionError is returned for any failure to resolve one reference.
type ResolutionError struct {
	Kind      ResolutionErrorKind
	Reference string
	Err       error
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case UnsupportedScheme:
		return fmt.Sprintf("no resolver for scheme %q in reference %q", SchemeOf(e.Reference), e.Reference)
	case NotFound:
		return fmt.Sprintf("%q not found", e.Reference)
	default:
		if e.Err != nil {
			return fmt.Sprintf("failed to retrieve %q: %v", e.Reference, e.Err)
		}
		return fmt.Sprintf("failed to retrieve %q", e.Reference)
	}
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func notFound(reference string, err error) error {
	return &ResolutionError{Kind: NotFound, Reference: reference, Err: err}
}

func retrievalFailed(reference string, err error) error {
	return &ResolutionError{Kind: RetrievalFailed, Reference: reference, Err: err}
}
