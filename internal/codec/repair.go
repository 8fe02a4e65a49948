package codec

import (
	"encoding/hex"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/ykovtun/declsync/internal/metrics"
)

// An old upstream exporter occasionally emitted UTF-8 Cyrillic text re-read
// through Windows-1251. Each corrupted character surfaces as the lead 'Р'
// (the 1251 reading of UTF-8 lead byte 0xD0) followed by the 1251 reading of
// the continuation byte. repairTable maps the hex of the follower's UTF-8
// bytes back to the Windows-1251 byte whose decoding restores the original
// character.
//
// Known limitation: the table only covers corruption sequences observed in
// real upstream payloads (the 0xD0 page). New variants pass through
// unrepaired; they are flagged via the encoding_unmapped_runs_total counter
// rather than silently dropped.
var repairTable = map[string]byte{
	"c2b0":   0xE0, // ° -> а
	"c2b1":   0xE1, // ± -> б
	"d086":   0xE2, // І -> в
	"d196":   0xE3, // і -> г
	"d291":   0xE4, // ґ -> д
	"c2b5":   0xE5, // µ -> е
	"c2b6":   0xE6, // ¶ -> ж
	"c2b7":   0xE7, // · -> з
	"d191":   0xE8, // ё -> и
	"e28496": 0xE9, // № -> й
	"d194":   0xEA, // є -> к
	"c2bb":   0xEB, // » -> л
	"d198":   0xEC, // ј -> м
	"d085":   0xED, // Ѕ -> н
	"d195":   0xEE, // ѕ -> о
	"d197":   0xEF, // ї -> п
	"d192":   0xC0, // ђ -> А
}

// suspectRe gates the repair pass: it fires only on the lead 'Р' followed by
// one of the unambiguous non-letter continuation characters. Gating on the
// narrow set keeps ordinary Cyrillic words beginning with 'Р' untouched.
var suspectRe = regexp.MustCompile(`Р[°±µ¶·»№Ѕѕјґђ]`)

// RepairMisencodedText undoes the double-encoding corruption described
// above. Text that does not match the suspicious pattern is returned
// unchanged. Unrecognized runs keep the literal lead character (the repair
// is best-effort; one unmapped run must not fail the whole document).
func RepairMisencodedText(text string) string {
	if !suspectRe.MatchString(text) {
		return text
	}

	b := []byte(text)
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		// 0xD0 0xA0 is 'Р', the 2-byte lead of every corrupted run.
		if b[i] == 0xD0 && i+2 < len(b) && b[i+1] == 0xA0 {
			r, size := utf8.DecodeRune(b[i+2:])
			if r != utf8.RuneError && suspiciousFollower(r) {
				key := hex.EncodeToString(b[i+2 : i+2+size])
				if legacy, ok := repairTable[key]; ok {
					out = utf8.AppendRune(out, charmap.Windows1251.DecodeByte(legacy))
					metrics.RepairedRunsTotal.Inc()
					i += 2 + size
					continue
				}
				metrics.UnmappedRunsTotal.Inc()
			}
		}
		_, size := utf8.DecodeRune(b[i:])
		if size == 0 {
			size = 1
		}
		out = append(out, b[i:i+size]...)
		i += size
	}
	return string(out)
}

// suspiciousFollower reports whether r is the Windows-1251 reading of a
// UTF-8 continuation byte (0x80..0xBF), i.e. whether it can be part of a
// corrupted run at all.
func suspiciousFollower(r rune) bool {
	legacy, ok := charmap.Windows1251.EncodeRune(r)
	return ok && legacy >= 0x80 && legacy <= 0xBF
}
