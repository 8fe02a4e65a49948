package store

import (
	"strings"

	"github.com/goccy/go-json"
)

// PayloadKind tags the persisted raw-payload format.
type PayloadKind int

const (
	// PayloadEmpty means no payload has been stored yet.
	PayloadEmpty PayloadKind = iota
	// PayloadEnvelope is the JSON envelope {listPhaseData, detailPhaseData}.
	PayloadEnvelope
	// PayloadLegacyXML is the historical format: the whole field is bare
	// detail XML, no list phase.
	PayloadLegacyXML
)

// Payload is the decoded raw-payload variant. The on-disk field holds either
// a JSON envelope or bare XML; DecodePayload branches on the leading rune
// exactly once, so no caller ever re-sniffs the format.
type Payload struct {
	Kind        PayloadKind
	ListPhase   json.RawMessage `json:"listPhaseData,omitempty"`
	DetailPhase string          `json:"detailPhaseData,omitempty"`
	LegacyXML   string          `json:"-"`
}

// DecodePayload parses the stored raw payload. Unparseable JSON degrades to
// an empty envelope rather than an error; the payload slot is opaque and
// best-effort by contract.
func DecodePayload(raw string) Payload {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Payload{Kind: PayloadEmpty}
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var p Payload
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			return Payload{Kind: PayloadEnvelope}
		}
		p.Kind = PayloadEnvelope
		return p
	}
	if strings.HasPrefix(trimmed, "<") {
		return Payload{Kind: PayloadLegacyXML, LegacyXML: trimmed}
	}
	return Payload{Kind: PayloadEmpty}
}

// Encode serializes the payload back to its storage form.
func (p Payload) Encode() (string, error) {
	switch p.Kind {
	case PayloadLegacyXML:
		return p.LegacyXML, nil
	case PayloadEmpty:
		return "", nil
	default:
		out, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

// HasDetail reports whether detail-phase data is present. Legacy bare-XML
// payloads are detail-only by definition.
func (p Payload) HasDetail() bool {
	return p.Kind == PayloadLegacyXML || p.DetailPhase != ""
}
