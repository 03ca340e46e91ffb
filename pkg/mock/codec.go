package mock

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// encodeBody splits a body into its wire representation: the text field when
// the bytes are valid UTF-8, the base64 field otherwise. Exactly one of the
// two return values is non-empty for a non-empty body.
func encodeBody(b []byte) (text, b64 string) {
	if len(b) == 0 {
		return "", ""
	}
	if utf8.Valid(b) {
		return string(b), ""
	}
	return "", base64.StdEncoding.EncodeToString(b)
}

// decodeBody reverses encodeBody. The base64 field wins when both are set.
func decodeBody(text, b64 string) ([]byte, error) {
	if b64 != "" {
		b, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		return b, nil
	}
	if text == "" {
		return nil, nil
	}
	return []byte(text), nil
}
