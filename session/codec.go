package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrMalformedCookie is returned by a Decoder that cannot read the value.
	ErrMalformedCookie = errors.New("malformed session cookie")
	// ErrEmptyRefreshToken is returned when a decoded payload has no refresh token.
	ErrEmptyRefreshToken = errors.New("session cookie has no refresh token")
)

// Decoder turns one historical cookie encoding back into a RefreshSession.
type Decoder struct {
	Name   string
	Decode func(value string) (*RefreshSession, error)
}

// payload is the JSON document shared by every encoding.
type payload struct {
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt *int64 `json:"refresh_expires_at,omitempty"`
}

// CurrentDecoder reads unpadded base64url JSON, the format Encode writes.
var CurrentDecoder = Decoder{
	Name: "base64url",
	Decode: func(value string) (*RefreshSession, error) {
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
		if err != nil {
			return nil, ErrMalformedCookie
		}
		return unmarshalPayload(raw)
	},
}

// LegacyDecoder reads the original percent-encoded standard base64 JSON format.
var LegacyDecoder = Decoder{
	Name: "percent-base64",
	Decode: func(value string) (*RefreshSession, error) {
		unescaped, err := url.QueryUnescape(value)
		if err != nil {
			return nil, ErrMalformedCookie
		}
		raw, err := base64.StdEncoding.DecodeString(unescaped)
		if err != nil {
			return nil, ErrMalformedCookie
		}
		return unmarshalPayload(raw)
	},
}

// DefaultDecoders returns the decoders tried by a zero-configured Codec, newest first.
func DefaultDecoders() []Decoder {
	return []Decoder{CurrentDecoder, LegacyDecoder}
}

// Codec encodes RefreshSession values into opaque, URL-safe cookie values and reads
// them back through an ordered list of decoders.
//
// Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	decoders []Decoder
}

// NewCodec builds a Codec. Decoders are tried in the given order; with none given,
// DefaultDecoders is used. Appending a decoder is how a new encoding is introduced
// without dropping support for the older ones.
func NewCodec(decoders ...Decoder) *Codec {
	if len(decoders) == 0 {
		decoders = DefaultDecoders()
	}
	out := make([]Decoder, len(decoders))
	copy(out, decoders)
	return &Codec{decoders: out}
}

// Encode serializes s using the current encoding.
func (c *Codec) Encode(s RefreshSession) (string, error) {
	raw, err := marshalPayload(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode returns the session stored in value, or nil when no decoder accepts it or
// the decoded session has an empty refresh token.
func (c *Codec) Decode(value string) *RefreshSession {
	if c == nil || value == "" {
		return nil
	}
	for _, d := range c.decoders {
		if d.Decode == nil {
			continue
		}
		s, err := d.Decode(value)
		if err != nil || s == nil {
			continue
		}
		if s.RefreshToken == "" {
			continue
		}
		return s
	}
	return nil
}

// EncodeLegacy serializes s in the legacy percent-encoded base64 format.
func EncodeLegacy(s RefreshSession) (string, error) {
	raw, err := marshalPayload(s)
	if err != nil {
		return "", err
	}
	return url.QueryEscape(base64.StdEncoding.EncodeToString(raw)), nil
}

func marshalPayload(s RefreshSession) ([]byte, error) {
	if s.RefreshToken == "" {
		return nil, ErrEmptyRefreshToken
	}
	p := payload{RefreshToken: s.RefreshToken}
	if !s.RefreshExpiresAt.IsZero() {
		ms := s.RefreshExpiresAt.UnixMilli()
		p.RefreshExpiresAt = &ms
	}
	return json.Marshal(p)
}

func unmarshalPayload(raw []byte) (*RefreshSession, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrMalformedCookie
	}
	if p.RefreshToken == "" {
		return nil, ErrEmptyRefreshToken
	}
	s := &RefreshSession{RefreshToken: p.RefreshToken}
	if p.RefreshExpiresAt != nil {
		s.RefreshExpiresAt = time.UnixMilli(*p.RefreshExpiresAt)
	}
	return s, nil
}
