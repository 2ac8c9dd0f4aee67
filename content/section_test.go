package content

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sectionIDs(d Document) []string {
	ids := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		ids[i] = s.ID
	}
	return ids
}

func docWith(t *testing.T, kinds ...Kind) Document {
	t.Helper()
	d := NewDocument(TypePage, "Landing")
	for _, k := range kinds {
		if _, err := d.AddSection(k, -1); err != nil {
			t.Fatalf("add %s: %v", k, err)
		}
	}
	return d
}

func TestAddSectionInsertsAtIndex(t *testing.T) {
	d := docWith(t, KindHero, KindText)
	s, err := d.AddSection(KindFAQ, 1)
	if err != nil {
		t.Fatal(err)
	}
	if d.Sections[1].ID != s.ID {
		t.Fatalf("expected new section at index 1, got %v", sectionIDs(d))
	}
	if s.Content.(*FAQ).Heading == "" {
		t.Error("new section should hold default content")
	}

	s, err = d.AddSection(KindCTA, 99)
	if err != nil {
		t.Fatal(err)
	}
	if d.Sections[len(d.Sections)-1].ID != s.ID {
		t.Error("out of range index should append")
	}

	if _, err := d.AddSection("carousel", 0); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind: got %v", err)
	}
	if len(d.Sections) != 4 {
		t.Errorf("len = %d, want 4", len(d.Sections))
	}
}

func TestMoveSection(t *testing.T) {
	tests := []struct {
		name  string
		from  int
		delta int
		want  []int
	}{
		{"down one", 0, 1, []int{1, 0, 2, 3}},
		{"up one", 2, -1, []int{0, 2, 1, 3}},
		{"clamped at top", 1, -5, []int{1, 0, 2, 3}},
		{"clamped at bottom", 1, 10, []int{0, 2, 3, 1}},
		{"no-op", 3, 1, []int{0, 1, 2, 3}},
		{"huge delta down", 1, math.MaxInt, []int{0, 2, 3, 1}},
		{"huge delta up", 2, math.MinInt, []int{2, 0, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := docWith(t, KindHero, KindText, KindFAQ, KindCTA)
			orig := sectionIDs(d)
			if err := d.MoveSection(orig[tt.from], tt.delta); err != nil {
				t.Fatal(err)
			}
			want := make([]string, len(tt.want))
			for i, n := range tt.want {
				want[i] = orig[n]
			}
			if diff := cmp.Diff(want, sectionIDs(d)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReorderSections(t *testing.T) {
	d := docWith(t, KindHero, KindText, KindFAQ)
	ids := sectionIDs(d)
	want := []string{ids[2], ids[0], ids[1]}
	if err := d.ReorderSections(want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, sectionIDs(d)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	bad := [][]string{
		{ids[0], ids[1]},
		{ids[0], ids[0], ids[1]},
		{ids[0], ids[1], "nope"},
	}
	for _, order := range bad {
		if err := d.ReorderSections(order); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("ReorderSections(%v) = %v, want ErrInvalidOrder", order, err)
		}
	}
	if diff := cmp.Diff(want, sectionIDs(d)); diff != "" {
		t.Errorf("failed reorder must not change the document (-want +got):\n%s", diff)
	}
}

func TestDuplicateSectionIsDeepCopy(t *testing.T) {
	d := docWith(t, KindFAQ, KindText)
	orig := d.Sections[0]
	dup, err := d.DuplicateSection(orig.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == orig.ID {
		t.Fatal("duplicate must get a new id")
	}
	if d.Sections[1].ID != dup.ID {
		t.Fatal("duplicate should follow the original")
	}
	dup.Content.(*FAQ).Items[0].Question = "changed"
	if orig.Content.(*FAQ).Items[0].Question == "changed" {
		t.Error("duplicate shares item slice with the original")
	}
}

func TestToggleUpdateRemove(t *testing.T) {
	d := docWith(t, KindText, KindHero)
	id := d.Sections[0].ID

	hidden, err := d.ToggleSection(id)
	if err != nil || !hidden {
		t.Fatalf("toggle = %v, %v", hidden, err)
	}
	if len(d.VisibleSections()) != 1 {
		t.Error("hidden section should be skipped by VisibleSections")
	}
	if hidden, _ = d.ToggleSection(id); hidden {
		t.Error("second toggle should unhide")
	}

	if err := d.UpdateSection(id, &Text{Body: "new"}); err != nil {
		t.Fatal(err)
	}
	if got := d.Sections[0].Content.(*Text).Body; got != "new" {
		t.Errorf("body = %q", got)
	}
	if err := d.UpdateSection(id, &Hero{Heading: "x"}); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("kind mismatch: got %v", err)
	}

	if err := d.RemoveSection(id); err != nil {
		t.Fatal(err)
	}
	if len(d.Sections) != 1 {
		t.Fatalf("len = %d after remove", len(d.Sections))
	}
	for _, err := range []error{
		d.RemoveSection(id),
		d.MoveSection(id, 1),
		d.UpdateSection(id, &Text{}),
	} {
		if !errors.Is(err, ErrSectionNotFound) {
			t.Errorf("got %v, want ErrSectionNotFound", err)
		}
	}
	if _, err := d.ToggleSection(id); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("toggle: got %v", err)
	}
	if _, err := d.DuplicateSection(id); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("duplicate: got %v", err)
	}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	d := docWith(t, KindHero, KindPricing, KindGallery)
	d.Sections[1].Hidden = true

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var got Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownKindIsPreserved(t *testing.T) {
	in := `{"id":"s1","kind":"carousel","content":{"speed":3,"slides":["a","b"]}}`
	var s Section
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatal(err)
	}
	u, ok := s.Content.(*Unknown)
	if !ok {
		t.Fatalf("content = %T, want *Unknown", s.Content)
	}
	if u.Kind() != "carousel" {
		t.Errorf("kind = %q", u.Kind())
	}
	if err := u.Validate(); err != nil {
		t.Errorf("unknown content should not block saving: %v", err)
	}
	if err := u.Decode(nil); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Decode: got %v", err)
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var want, have map[string]any
	if err := json.Unmarshal([]byte(in), &want); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &have); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, have); diff != "" {
		t.Errorf("unknown section changed on re-encode (-want +got):\n%s", diff)
	}
}

func TestSectionWithNullContentDecodesEmpty(t *testing.T) {
	var s Section
	if err := json.Unmarshal([]byte(`{"id":"s1","kind":"text","content":null}`), &s); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&Text{}, s.Content); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestGalleryColumnsAreClampedOnDecode(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int
	}{
		{"missing", `{"id":"g","kind":"gallery","content":{"images":[]}}`, 3},
		{"zero", `{"id":"g","kind":"gallery","content":{"columns":0}}`, 3},
		{"too many", `{"id":"g","kind":"gallery","content":{"columns":6}}`, 4},
		{"too few", `{"id":"g","kind":"gallery","content":{"columns":1}}`, 2},
		{"in range", `{"id":"g","kind":"gallery","content":{"columns":2}}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Section
			if err := json.Unmarshal([]byte(tt.json), &s); err != nil {
				t.Fatal(err)
			}
			g := s.Content.(*Gallery)
			if g.Columns != tt.want {
				t.Errorf("columns = %d, want %d", g.Columns, tt.want)
			}
			if err := g.Validate(); err != nil {
				t.Errorf("decoded gallery does not validate: %v", err)
			}
		})
	}
}
