package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

var (
	// ErrSectionNotFound is returned by section operations given an unknown id.
	ErrSectionNotFound = errors.New("section not found")
	// ErrKindMismatch is returned when updating a section with another kind's content.
	ErrKindMismatch = errors.New("section kind mismatch")
	// ErrInvalidOrder is returned when a reorder request is not a permutation
	// of the current section ids.
	ErrInvalidOrder = errors.New("invalid section order")
)

// Section is one block of a document.
type Section struct {
	ID      string
	Kind    Kind
	Hidden  bool
	Content Content
}

type sectionJSON struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Hidden  bool            `json:"hidden,omitempty"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes the section with its content nested under "content".
func (s Section) MarshalJSON() ([]byte, error) {
	raw := json.RawMessage("{}")
	if s.Content != nil {
		b, err := json.Marshal(s.Content)
		if err != nil {
			return nil, fmt.Errorf("marshal %s content: %w", s.Kind, err)
		}
		raw = b
	}
	return json.Marshal(sectionJSON{ID: s.ID, Kind: s.Kind, Hidden: s.Hidden, Content: raw})
}

// UnmarshalJSON decodes a section, resolving the content type through the
// package registry. Kinds that are not registered decode to *Unknown.
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw sectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c, err := DecodeContent(raw.Kind, func(target any) error {
		if len(raw.Content) == 0 || string(raw.Content) == "null" {
			return nil
		}
		return json.Unmarshal(raw.Content, target)
	})
	if err != nil {
		return err
	}
	*s = Section{ID: raw.ID, Kind: raw.Kind, Hidden: raw.Hidden, Content: c}
	return nil
}

// DecodeContent builds the content for kind and fills it using unmarshal,
// which receives a pointer to the decoding target. Storage backends pass
// their own codec (JSON, BSON, YAML) here.
func DecodeContent(kind Kind, unmarshal func(target any) error) (Content, error) {
	c, err := NewContent(kind)
	if errors.Is(err, ErrUnknownKind) {
		u := &Unknown{StoredKind: kind}
		if err := unmarshal(&u.Fields); err != nil {
			return nil, fmt.Errorf("decode %s content: %w", kind, err)
		}
		return u, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode %s content: %w", kind, err)
	}
	if n, ok := c.(normalizer); ok {
		n.normalize()
	}
	return c, nil
}

// normalizer is implemented by content that coerces decoded values into
// range, the same way its form decoding does.
type normalizer interface {
	normalize()
}

// Unknown holds the content of a section whose kind is no longer registered.
// The stored fields are kept so that saving the document does not drop them.
type Unknown struct {
	StoredKind Kind
	Fields     map[string]any
}

func (u *Unknown) Kind() Kind { return u.StoredKind }

func (u *Unknown) Validate() error { return nil }

func (u *Unknown) Decode(url.Values) error {
	return fmt.Errorf("%w: %s", ErrUnknownKind, u.StoredKind)
}

func (u *Unknown) MarshalJSON() ([]byte, error) {
	if u.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.Fields)
}

// CloneContent returns a deep copy of c.
func CloneContent(c Content) (Content, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return DecodeContent(c.Kind(), func(target any) error {
		return json.Unmarshal(b, target)
	})
}

// NewSection returns a section of kind holding the kind's default content.
func NewSection(kind Kind) (Section, error) {
	c, err := DefaultContent(kind)
	if err != nil {
		return Section{}, err
	}
	return Section{ID: uuid.NewString(), Kind: kind, Content: c}, nil
}

func (d *Document) indexOf(id string) int {
	for i, s := range d.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Section returns the section with id.
func (d *Document) Section(id string) (Section, error) {
	i := d.indexOf(id)
	if i < 0 {
		return Section{}, ErrSectionNotFound
	}
	return d.Sections[i], nil
}

// AddSection inserts a new section of kind at index at. A negative or
// out-of-range index appends.
func (d *Document) AddSection(kind Kind, at int) (Section, error) {
	s, err := NewSection(kind)
	if err != nil {
		return Section{}, err
	}
	d.insert(s, at)
	return s, nil
}

func (d *Document) insert(s Section, at int) {
	if at < 0 || at >= len(d.Sections) {
		d.Sections = append(d.Sections, s)
		return
	}
	d.Sections = append(d.Sections, Section{})
	copy(d.Sections[at+1:], d.Sections[at:])
	d.Sections[at] = s
}

// UpdateSection replaces the content of section id.
func (d *Document) UpdateSection(id string, c Content) error {
	i := d.indexOf(id)
	if i < 0 {
		return ErrSectionNotFound
	}
	if c.Kind() != d.Sections[i].Kind {
		return fmt.Errorf("%w: %s != %s", ErrKindMismatch, c.Kind(), d.Sections[i].Kind)
	}
	d.Sections[i].Content = c
	return nil
}

// RemoveSection deletes section id.
func (d *Document) RemoveSection(id string) error {
	i := d.indexOf(id)
	if i < 0 {
		return ErrSectionNotFound
	}
	d.Sections = append(d.Sections[:i], d.Sections[i+1:]...)
	return nil
}

// MoveSection shifts section id by delta positions, stopping at either end.
func (d *Document) MoveSection(id string, delta int) error {
	i := d.indexOf(id)
	if i < 0 {
		return ErrSectionNotFound
	}
	delta = clamp(delta, -len(d.Sections), len(d.Sections))
	j := i + delta
	if j < 0 {
		j = 0
	}
	if j > len(d.Sections)-1 {
		j = len(d.Sections) - 1
	}
	if i == j {
		return nil
	}
	s := d.Sections[i]
	if j > i {
		copy(d.Sections[i:j], d.Sections[i+1:j+1])
	} else {
		copy(d.Sections[j+1:i+1], d.Sections[j:i])
	}
	d.Sections[j] = s
	return nil
}

// ReorderSections puts the sections in the order given by ids, which must
// name every current section exactly once.
func (d *Document) ReorderSections(ids []string) error {
	if len(ids) != len(d.Sections) {
		return fmt.Errorf("%w: got %d ids for %d sections", ErrInvalidOrder, len(ids), len(d.Sections))
	}
	byID := make(map[string]Section, len(d.Sections))
	for _, s := range d.Sections {
		byID[s.ID] = s
	}
	ordered := make([]Section, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown or repeated id %q", ErrInvalidOrder, id)
		}
		delete(byID, id)
		ordered = append(ordered, s)
	}
	d.Sections = ordered
	return nil
}

// DuplicateSection inserts a deep copy of section id right after it.
func (d *Document) DuplicateSection(id string) (Section, error) {
	i := d.indexOf(id)
	if i < 0 {
		return Section{}, ErrSectionNotFound
	}
	orig := d.Sections[i]
	c, err := CloneContent(orig.Content)
	if err != nil {
		return Section{}, fmt.Errorf("clone section: %w", err)
	}
	dup := Section{ID: uuid.NewString(), Kind: orig.Kind, Hidden: orig.Hidden, Content: c}
	d.insert(dup, i+1)
	return dup, nil
}

// ToggleSection flips the hidden flag of section id and returns the new value.
func (d *Document) ToggleSection(id string) (bool, error) {
	i := d.indexOf(id)
	if i < 0 {
		return false, ErrSectionNotFound
	}
	d.Sections[i].Hidden = !d.Sections[i].Hidden
	return d.Sections[i].Hidden, nil
}
