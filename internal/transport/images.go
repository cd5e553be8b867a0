package transport

import "strings"

// defaultImageMimeType is used whenever a bare base64 image carries no
// identifiable header, per spec.md's "default image/png" rule.
const defaultImageMimeType = "image/png"

// dataURLPrefix matches "data:<mime>;base64," at the start of a data URL.
const dataURLPrefix = "data:"

// ResolveImageMimeType derives an image's MIME type from its wire
// representation: the explicit mime_type field wins if present, otherwise
// a "data:" URL's own header is parsed, otherwise image/png is assumed.
func ResolveImageMimeType(img ImageWire) string {
	if img.MimeType != "" {
		return img.MimeType
	}
	if mime, ok := mimeFromDataURL(img.Data); ok {
		return mime
	}
	return defaultImageMimeType
}

// RawImageData strips a data-URL header off img.Data, leaving bare base64.
// Data already bare base64 is returned unchanged.
func RawImageData(img ImageWire) string {
	if !strings.HasPrefix(img.Data, dataURLPrefix) {
		return img.Data
	}
	if idx := strings.IndexByte(img.Data, ','); idx != -1 {
		return img.Data[idx+1:]
	}
	return img.Data
}

// mimeFromDataURL parses "data:image/jpeg;base64,..." headers.
func mimeFromDataURL(data string) (string, bool) {
	if !strings.HasPrefix(data, dataURLPrefix) {
		return "", false
	}
	rest := data[len(dataURLPrefix):]
	comma := strings.IndexByte(rest, ',')
	if comma == -1 {
		return "", false
	}
	header := rest[:comma]
	mime := header
	if semi := strings.IndexByte(header, ';'); semi != -1 {
		mime = header[:semi]
	}
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return "", false
	}
	return mime, true
}
