package simplepresign

import "errors"

var (
	// ErrMissingSigningConfig is returned by the presigning interceptor when no
	// signing configuration was placed in the config bag before signing. It means
	// the pipeline was assembled without a signing plugin; it is never retried.
	ErrMissingSigningConfig = errors.New("simplepresign: presigning requires an operation signing config in the config bag; the pipeline was assembled without a signing plugin")

	// ErrExpiresUnset is returned when the presigned URL lifetime is shorter
	// than MinExpires
	ErrExpiresUnset = errors.New("simplepresign: presigned URL expiry must be at least one second")

	// ErrExpiresTooLong is returned when the lifetime exceeds MaxExpires
	ErrExpiresTooLong = errors.New("simplepresign: presigned URL expiry must not exceed one week")
)

// IsAssemblyError reports whether err comes from a pipeline that was wired
// incorrectly rather than from bad input or a transient fault
func IsAssemblyError(err error) bool {
	return errors.Is(err, ErrMissingSigningConfig)
}

// IsConfigError reports whether err is a presigning config validation error
func IsConfigError(err error) bool {
	return errors.Is(err, ErrExpiresUnset) || errors.Is(err, ErrExpiresTooLong)
}
