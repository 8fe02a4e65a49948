package codec

import "testing"

func TestRepairMisencodedText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single corrupted letter",
			in:   "Р°",
			want: "а",
		},
		{
			name: "corrupted word",
			in:   "Р°Р±Р°",
			want: "аба",
		},
		{
			name: "three byte follower",
			in:   "Р№",
			want: "й",
		},
		{
			name: "run inside a sentence",
			in:   "відправник: Р°Р±, отримувач: склад",
			want: "відправник: аб, отримувач: склад",
		},
		{
			name: "capital page",
			in:   "Рђ",
			want: "А",
		},
		{
			name: "normal word starting with Р stays",
			in:   "Рішення про випуск",
			want: "Рішення про випуск",
		},
		{
			name: "number sign without lead stays",
			in:   "накладна № 17",
			want: "накладна № 17",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RepairMisencodedText(tt.in); got != tt.want {
				t.Errorf("RepairMisencodedText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// An unmapped follower keeps its literal bytes; the rest of the document is
// still repaired.
func TestRepairKeepsUnmappedRuns(t *testing.T) {
	in := "Р°РҐ"
	want := "аРҐ"
	if got := RepairMisencodedText(in); got != want {
		t.Errorf("RepairMisencodedText(%q) = %q, want %q", in, got, want)
	}
}

// Once the document triggers the pass, letter followers from the broad table
// are repaired too.
func TestRepairBroadTableAfterTrigger(t *testing.T) {
	// "Рі" alone would never trigger; alongside an unambiguous run it is
	// treated as corruption as well.
	in := "Р° Рі"
	want := "а г"
	if got := RepairMisencodedText(in); got != want {
		t.Errorf("RepairMisencodedText(%q) = %q, want %q", in, got, want)
	}
}
