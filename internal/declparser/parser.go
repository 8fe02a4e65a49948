// Package declparser extracts declaration summaries from the decoded list
// XML. Both extraction tiers produce the same flat field maps, so callers
// never learn which one ran.
package declparser

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/ykovtun/declsync/internal/codec"
)

// itemTag is the repeated list-item element under the payload root.
const itemTag = "Declaration"

var (
	itemBlockRe     = regexp.MustCompile(`(?s)<Declaration>(.*?)</Declaration>`)
	flatFieldRe     = regexp.MustCompile(`<(\w+)>([^<]*)</\w+>`)
	transportTagRe  = regexp.MustCompile(`<transport>([^<]*)</transport>`)
	transportNameRe = regexp.MustCompile(`(?s)<TransportMeans>.*?<name>([^<]*)</name>.*?</TransportMeans>`)
)

// ParseList extracts declaration summaries from list XML. It never returns
// an error: the XML tier degrades to a regex tier, and the regex tier
// degrades to an empty slice.
func ParseList(xmlText string) []*Summary {
	items, ok := parseItemsXML(xmlText)
	if !ok {
		items = parseItemsRegex(xmlText)
	}

	summaries := make([]*Summary, 0, len(items))
	for _, fields := range items {
		summaries = append(summaries, buildSummary(fields, xmlText))
	}
	return summaries
}

// parseItemsXML is the primary tier: a tolerant token walk into nested maps,
// then the repeated item field under the single root key, normalized to a
// slice whether the payload held one item or many.
func parseItemsXML(xmlText string) ([]map[string]string, bool) {
	root, ok := xmlToMap(xmlText)
	if !ok || len(root) == 0 {
		return nil, false
	}

	// The prolog is not a map key; whatever single key remains is the root.
	var body any
	for _, v := range root {
		body = v
		break
	}
	bodyMap, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}

	var items []map[string]string
	switch v := bodyMap[itemTag].(type) {
	case []any:
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				items = append(items, flatten(m))
			}
		}
	case map[string]any:
		items = append(items, flatten(v))
	default:
		return nil, false
	}
	return items, true
}

// xmlToMap walks XML tokens into map[string]any. Repeated keys become
// slices; elements with children become nested maps. Character data quirks
// do not abort the walk, but a malformed token stream does.
func xmlToMap(xmlText string) (map[string]any, bool) {
	dec := xml.NewDecoder(strings.NewReader(xmlText))
	// Input is always UTF-8 by the time it reaches the parser; a stale
	// windows-1251 declaration left over from the transport decode must not
	// abort the walk.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	root := make(map[string]any)
	stack := []map[string]any{root}
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := make(map[string]any)
			parent := stack[len(stack)-1]
			insert(parent, t.Name.Local, child)
			stack = append(stack, child)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(top) == 0 {
				// Leaf element: replace the empty map with its text.
				replaceLeaf(stack[len(stack)-1], t.Name.Local, strings.TrimSpace(text.String()))
			}
			text.Reset()
		}
	}
	if len(stack) != 1 {
		return nil, false
	}
	return root, true
}

func insert(parent map[string]any, key string, value any) {
	existing, ok := parent[key]
	if !ok {
		parent[key] = value
		return
	}
	if slice, ok := existing.([]any); ok {
		parent[key] = append(slice, value)
		return
	}
	parent[key] = []any{existing, value}
}

func replaceLeaf(parent map[string]any, key, text string) {
	switch v := parent[key].(type) {
	case []any:
		if len(v) > 0 {
			v[len(v)-1] = text
		}
	case map[string]any:
		parent[key] = text
	}
}

func flatten(item map[string]any) map[string]string {
	fields := make(map[string]string, len(item))
	for k, v := range item {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}

// parseItemsRegex is the fallback tier: line-oriented block extraction with
// per-field tag matching. It produces the same shape as the XML tier and
// itself never fails; garbage in means an empty result out.
func parseItemsRegex(xmlText string) []map[string]string {
	var items []map[string]string
	for _, block := range itemBlockRe.FindAllStringSubmatch(xmlText, -1) {
		fields := make(map[string]string)
		for _, m := range flatFieldRe.FindAllStringSubmatch(block[1], -1) {
			fields[m[1]] = strings.TrimSpace(m[2])
		}
		if len(fields) > 0 {
			items = append(items, fields)
		}
	}
	return items
}

// buildSummary maps flat fields into a Summary, running the transport-name
// fallback against the original XML text and the double-encoding repair on
// the two party-name fields known to suffer from it.
func buildSummary(fields map[string]string, xmlText string) *Summary {
	s := &Summary{
		GUID:       fields["guid"],
		MRNCustoms: fields["mrn_customs"],
		MRNDate:    fields["mrn_date"],
		MRNNumber:  fields["mrn_number"],
		StatusCode: fields["status"],
		Registered: fields["registered"],
		Sender:     codec.RepairMisencodedText(fields["sender"]),
		Receiver:   codec.RepairMisencodedText(fields["receiver"]),
		Declarant:  fields["declarant"],
		Transport:  fields["transport"],
		Fields:     fields,
	}
	if s.Transport == "" {
		s.Transport = extractTransport(xmlText, s.GUID)
		if s.Transport != "" {
			fields["transport"] = s.Transport
		}
	}
	if s.Sender != fields["sender"] {
		fields["sender"] = s.Sender
	}
	if s.Receiver != fields["receiver"] {
		fields["receiver"] = s.Receiver
	}
	return s
}

// extractTransport re-scans the original XML for the item block carrying
// guid, trying the direct transport tag first and the nested
// transport-means block second, joining multiple names with ", ".
func extractTransport(xmlText, guid string) string {
	block := xmlText
	if guid != "" {
		for _, m := range itemBlockRe.FindAllStringSubmatch(xmlText, -1) {
			if strings.Contains(m[1], guid) {
				block = m[1]
				break
			}
		}
	}
	if m := transportTagRe.FindStringSubmatch(block); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	var names []string
	for _, m := range transportNameRe.FindAllStringSubmatch(block, -1) {
		if name := strings.TrimSpace(m[1]); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
