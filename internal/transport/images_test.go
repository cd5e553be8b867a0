package transport

import "testing"

func TestResolveImageMimeType_ExplicitFieldWins(t *testing.T) {
	img := ImageWire{Data: "data:image/png;base64,AAAA", MimeType: "image/jpeg"}
	if got := ResolveImageMimeType(img); got != "image/jpeg" {
		t.Fatalf("got %q, want image/jpeg", got)
	}
}

func TestResolveImageMimeType_ParsesDataURLHeader(t *testing.T) {
	img := ImageWire{Data: "data:image/webp;base64,AAAA"}
	if got := ResolveImageMimeType(img); got != "image/webp" {
		t.Fatalf("got %q, want image/webp", got)
	}
}

func TestResolveImageMimeType_DefaultsToPNG(t *testing.T) {
	img := ImageWire{Data: "AAAABBBBCCCC"}
	if got := ResolveImageMimeType(img); got != "image/png" {
		t.Fatalf("got %q, want image/png", got)
	}
}

func TestRawImageData_StripsDataURLHeader(t *testing.T) {
	img := ImageWire{Data: "data:image/png;base64,QUJD"}
	if got := RawImageData(img); got != "QUJD" {
		t.Fatalf("got %q, want QUJD", got)
	}
}

func TestRawImageData_BareBase64Unchanged(t *testing.T) {
	img := ImageWire{Data: "QUJD"}
	if got := RawImageData(img); got != "QUJD" {
		t.Fatalf("got %q, want QUJD", got)
	}
}
