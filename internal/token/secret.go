package token

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to keep the signing secret out of logs, JSON output,
// and fmt verbs. The actual value is only reachable via Value().
type Secret string

const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder.
func (s Secret) GoString() string { return secretRedacted }

// MarshalText returns the redacted placeholder so the secret never leaks
// into text-based serialization.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Value returns the raw secret. Call only where the bytes are actually
// needed, i.e. when keying the HMAC.
func (s Secret) Value() string { return string(s) }
