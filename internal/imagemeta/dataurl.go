package imagemeta

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURLSize returns the decoded byte length of a base64 data URL payload.
// Malformed or empty payloads report 0.
func DataURLSize(dataURL string) int64 {
	_, payload, ok := strings.Cut(dataURL, ",")
	if !ok || payload == "" {
		return 0
	}
	padding := strings.Count(payload, "=")
	size := int64(len(payload))*3/4 - int64(padding)
	if size < 0 {
		return 0
	}
	return size
}

// EncodeDataURL wraps data in a base64 data URL.
func EncodeDataURL(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a data URL into its media type and decoded payload.
func ParseDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: not a data url", ErrDecode)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: data url has no payload", ErrDecode)
	}

	mediaType := header
	isBase64 := false
	if i := strings.Index(header, ";"); i >= 0 {
		mediaType = header[:i]
		for _, param := range strings.Split(header[i+1:], ";") {
			if strings.EqualFold(strings.TrimSpace(param), "base64") {
				isBase64 = true
			}
		}
	}

	if !isBase64 {
		return mediaType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return mediaType, data, nil
}
