package validator

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTokenSegments is returned when a token is not three dot-separated segments.
	ErrTokenSegments = errors.New("token must have exactly three dot-separated segments")

	// ErrTokenTooLarge is returned for tokens over maxTokenSize.
	ErrTokenTooLarge = errors.New("token exceeds maximum size (1MB)")
)

// maxTokenSize bounds the work done on untrusted input before any parsing.
const maxTokenSize = 1024 * 1024

// compactHeader holds the header fields read before the token reaches jwx.
type compactHeader struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`

	signed bool
}

// parseCompact checks that token is header.payload.signature with every
// segment base64url-encoded, and decodes the header. The header and payload
// must not be empty. An empty signature is accepted here and reported through
// compactHeader.signed, so that alg none is still rejected as an unsupported
// algorithm.
func parseCompact(token string) (*compactHeader, error) {
	if token == "" {
		return nil, errors.New("token is empty")
	}
	if len(token) > maxTokenSize {
		return nil, ErrTokenTooLarge
	}
	if strings.Count(token, ".") != 2 {
		return nil, ErrTokenSegments
	}

	segments := strings.Split(token, ".")
	names := [...]string{"header", "payload", "signature"}
	decoded := make([][]byte, len(segments))
	for i, segment := range segments {
		if segment == "" && i < 2 {
			return nil, fmt.Errorf("token %s is empty", names[i])
		}
		b, err := base64.RawURLEncoding.DecodeString(segment)
		if err != nil {
			return nil, fmt.Errorf("token %s is not base64url: %w", names[i], err)
		}
		decoded[i] = b
	}

	var header compactHeader
	if err := json.Unmarshal(decoded[0], &header); err != nil {
		return nil, fmt.Errorf("token header is not a JSON object: %w", err)
	}
	if header.Algorithm == "" {
		return nil, errors.New("token header has no alg")
	}
	header.signed = segments[2] != ""

	return &header, nil
}
