package idp

const redacted = "[REDACTED]"

// Secret is a string that redacts itself in String, GoString, and MarshalText.
// The raw value is only reachable through Value.
type Secret string

func (s Secret) String() string { return redacted }

func (s Secret) GoString() string { return redacted }

// MarshalText keeps secrets out of JSON and structured logs.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// Empty reports whether no secret is held.
func (s Secret) Empty() bool { return s == "" }
