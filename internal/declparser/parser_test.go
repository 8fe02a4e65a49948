package declparser

import "testing"

const listDoc = `<?xml version="1.0" encoding="UTF-8"?>
<DeclarationList>
	<Declaration>
		<guid>g-1</guid>
		<mrn_customs>UA100000</mrn_customs>
		<mrn_date>2025</mrn_date>
		<mrn_number>000123</mrn_number>
		<status>R</status>
		<registered>2025-01-05 10:30:00</registered>
		<sender>Відправник ТОВ</sender>
		<receiver>Отримувач ПП</receiver>
		<declarant>Брокер</declarant>
		<transport>вантажівка AA1234BB</transport>
	</Declaration>
	<Declaration>
		<guid>g-2</guid>
		<status>5</status>
		<sender>Other</sender>
	</Declaration>
</DeclarationList>`

func TestParseListTwoItems(t *testing.T) {
	summaries := ParseList(listDoc)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	byGUID := map[string]*Summary{}
	for _, s := range summaries {
		byGUID[s.GUID] = s
	}

	s := byGUID["g-1"]
	if s == nil {
		t.Fatal("g-1 missing")
	}
	if s.MRN() != "UA100000/2025/000123" {
		t.Errorf("mrn = %q", s.MRN())
	}
	if s.StatusCode != "R" || s.Registered != "2025-01-05 10:30:00" {
		t.Errorf("status = %q registered = %q", s.StatusCode, s.Registered)
	}
	if s.Sender != "Відправник ТОВ" || s.Receiver != "Отримувач ПП" {
		t.Errorf("parties: %q / %q", s.Sender, s.Receiver)
	}
	if s.Transport != "вантажівка AA1234BB" {
		t.Errorf("transport = %q", s.Transport)
	}
	if s.Fields["declarant"] != "Брокер" {
		t.Errorf("fields = %v", s.Fields)
	}

	if byGUID["g-2"] == nil || byGUID["g-2"].StatusCode != "5" {
		t.Errorf("g-2 = %+v", byGUID["g-2"])
	}
}

func TestParseListSingleItem(t *testing.T) {
	doc := `<DeclarationList><Declaration><guid>only</guid><status>R</status></Declaration></DeclarationList>`
	summaries := ParseList(doc)
	if len(summaries) != 1 || summaries[0].GUID != "only" {
		t.Fatalf("summaries = %+v", summaries)
	}
}

func TestParseListRegexFallback(t *testing.T) {
	// Unclosed root makes the token walk fail; the block regex still finds
	// the complete items.
	doc := `<DeclarationList>
		<Declaration><guid>g-f</guid><status>N</status><sender>X</sender></Declaration>
	` // no closing root tag
	summaries := ParseList(doc)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1 via fallback", len(summaries))
	}
	if summaries[0].GUID != "g-f" || summaries[0].StatusCode != "N" {
		t.Errorf("summary = %+v", summaries[0])
	}
}

func TestParseListTransportFallback(t *testing.T) {
	doc := `<DeclarationList>
	<Declaration>
		<guid>g-t</guid>
		<TransportMeans><name>DAF XF</name></TransportMeans>
		<TransportMeans><name>причіп AB1</name></TransportMeans>
	</Declaration>
</DeclarationList>`
	summaries := ParseList(doc)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries", len(summaries))
	}
	if got := summaries[0].Transport; got != "DAF XF, причіп AB1" {
		t.Errorf("transport = %q", got)
	}
	if summaries[0].Fields["transport"] != "DAF XF, причіп AB1" {
		t.Error("fallback transport should land in the field map")
	}
}

func TestParseListRepairsPartyNames(t *testing.T) {
	doc := `<DeclarationList><Declaration><guid>g-r</guid><sender>Р°Р±</sender></Declaration></DeclarationList>`
	summaries := ParseList(doc)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries", len(summaries))
	}
	if summaries[0].Sender != "аб" {
		t.Errorf("sender = %q, want repaired", summaries[0].Sender)
	}
	if summaries[0].Fields["sender"] != "аб" {
		t.Error("repaired sender should replace the raw field")
	}
}

func TestParseListGarbage(t *testing.T) {
	for _, doc := range []string{"", "not xml at all", "<a><b></a>"} {
		if got := ParseList(doc); len(got) != 0 {
			t.Errorf("ParseList(%q) = %d items, want 0", doc, len(got))
		}
	}
}

func TestSummaryMRNEmpty(t *testing.T) {
	s := &Summary{}
	if s.MRN() != "" {
		t.Errorf("empty MRN = %q", s.MRN())
	}
}
