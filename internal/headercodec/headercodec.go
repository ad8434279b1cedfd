// Package headercodec encodes and decodes the base64url values used by
// trust-proxy identity headers. The upstream proxy encodes every header
// value so that arbitrary UTF-8 (display names, role lists) survives the
// ASCII-only HTTP header plane.
package headercodec

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Encode returns the base64url encoding of the given bytes.
func Encode(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}

// EncodeString encodes a UTF-8 string for use as a header value.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode reverses Encode exactly.
func Decode(v string) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}
	return raw, nil
}

// DecodeString decodes a header value and verifies it is valid UTF-8.
func DecodeString(v string) (string, error) {
	raw, err := Decode(v)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("decoded value is not valid UTF-8")
	}
	return string(raw), nil
}

// DecodeList decodes a header value holding a comma-separated list.
// Elements are trimmed of surrounding whitespace; empty elements are
// kept as the proxy sent them, so callers see exactly what was claimed.
func DecodeList(v string) ([]string, error) {
	s, err := DecodeString(v)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts, nil
}
