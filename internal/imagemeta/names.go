package imagemeta

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// RemoteFallbackName names remote images whose url has no usable file name.
const RemoteFallbackName = "Remote Image"

// FileName returns name, or "Image <index+1>" when name is blank.
func FileName(name string, index int) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return fmt.Sprintf("Image %d", index+1)
}

// NameFromURL returns the last path segment of rawURL without its query.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		segment := rawURL[strings.LastIndex(rawURL, "/")+1:]
		segment, _, _ = strings.Cut(segment, "?")
		if segment == "" {
			return RemoteFallbackName
		}
		return segment
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return RemoteFallbackName
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}
