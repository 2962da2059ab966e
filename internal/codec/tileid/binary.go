package tileid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrUnrecognizedBinaryType = errors.New("value is not binary data")

// DataURIPrefix marks a base64 payload carried inside a text value.
const DataURIPrefix = "data:application/octet-stream;base64,"

// ExtractBinary returns the bytes held by v: a byte slice (copied), or a
// string carrying a base64 data URI.
func ExtractBinary(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...), nil
	case string:
		payload, ok := strings.CutPrefix(b, DataURIPrefix)
		if !ok {
			break
		}
		out, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnrecognizedBinaryType, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnrecognizedBinaryType, v)
}

// DataURI renders b in the form ExtractBinary accepts.
func DataURI(b []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(b)
}
