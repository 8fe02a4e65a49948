package codec

import "fmt"

// ErrorKind classifies a transport decoding failure.
type ErrorKind int

const (
	// BadEnvelope means the Base64 envelope could not be decoded.
	BadEnvelope ErrorKind = iota
	// EmptyArchive means the ZIP archive contained no entries.
	EmptyArchive
	// CorruptArchive means the ZIP archive could not be opened or read.
	CorruptArchive
)

func (k ErrorKind) String() string {
	switch k {
	case BadEnvelope:
		return "bad_envelope"
	case EmptyArchive:
		return "empty_archive"
	case CorruptArchive:
		return "corrupt_archive"
	default:
		return "unknown"
	}
}

// TransportError is the typed failure Decode returns. It never escapes as a
// panic; callers branch on Kind.
type TransportError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport decode: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transport decode: %s", e.Kind)
}

func (e *TransportError) Unwrap() error { return e.Err }
