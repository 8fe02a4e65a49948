// Package codec turns the upstream wire payload (Base64 over a ZIP archive
// holding Windows-1251 or UTF-8 XML) into text, and repairs a known
// double-encoding corruption in legacy documents.
package codec

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// encodingDeclRe matches the XML prolog encoding declaration in the first
// bytes of an archive entry.
var encodingDeclRe = regexp.MustCompile(`encoding="([^"]+)"`)

// Decode unwraps a Base64 envelope into the XML text it carries.
// Failures come back as *TransportError; Decode never panics and the
// charset step never fails (it falls back Windows-1251, then raw UTF-8).
func Decode(envelope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envelope))
	if err != nil {
		return "", &TransportError{Kind: BadEnvelope, Err: err}
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", &TransportError{Kind: CorruptArchive, Err: err}
	}
	if len(zr.File) == 0 {
		return "", &TransportError{Kind: EmptyArchive, Err: errors.New("zip archive has no entries")}
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		return "", &TransportError{Kind: CorruptArchive, Err: err}
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", &TransportError{Kind: CorruptArchive, Err: err}
	}

	return decodeCharset(data), nil
}

// decodeCharset recovers text from entry bytes. The declared encoding wins
// when it is UTF-8 and the bytes validate; everything else goes through the
// legacy codepage. Total by construction.
func decodeCharset(data []byte) string {
	head := data
	if len(head) > 100 {
		head = head[:100]
	}
	if m := encodingDeclRe.FindSubmatch(head); m != nil {
		declared := strings.ToLower(string(m[1]))
		if (declared == "utf-8" || declared == "utf8") && utf8.Valid(data) {
			return string(data)
		}
	}
	if text, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
		return string(text)
	}
	// Windows-1251 maps every byte, so this branch is a formality.
	return string(data)
}
