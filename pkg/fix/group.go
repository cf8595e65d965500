package fix

import "strconv"

// Group is a repeating structure. The base field carries the repetition
// count on the wire; the first declared child delimits repetitions.
type Group struct {
	base         *Field
	rows         *baseComposite
	delimiterTag int
	tagset       map[int]struct{}
}

func newGroup(base *Field, items []compositeItem) (*Group, error) {
	if base.fieldType != FieldTypeNumInGroup {
		return nil, &Error{Kind: ErrKindXmlMalformed, Name: base.name, Reason: "group base field must be NUMINGROUP"}
	}
	if len(items) == 0 {
		return nil, &Error{Kind: ErrKindXmlMalformed, Name: base.name, Reason: "group without children"}
	}
	required := false
	for _, item := range items {
		required = required || item.required
	}
	if !required {
		return nil, &Error{Kind: ErrKindXmlMalformed, Name: base.name, Reason: "group without required children"}
	}
	rows, err := newBaseComposite(base.name, KindGroup, items)
	if err != nil {
		return nil, err
	}
	g := &Group{
		base:         base,
		rows:         rows,
		delimiterTag: firstTag(items[0].comp),
		tagset:       make(map[int]struct{}, len(rows.tagset)+1),
	}
	g.tagset[base.number] = struct{}{}
	for tag := range rows.tagset {
		g.tagset[tag] = struct{}{}
	}
	return g, nil
}

// firstTag resolves the leading wire tag of a composite in declaration
// order. For a group that is its count field.
func firstTag(comp Composite) int {
	switch c := comp.(type) {
	case *Field:
		return c.number
	case *Component:
		return firstTag(c.base.items[0].comp)
	case *Group:
		return c.base.number
	}
	panic("invalid composite for first tag resolution: " + comp.Name())
}

func (g *Group) Name() string {
	return g.base.name
}

func (g *Group) Kind() CompositeKind {
	return KindGroup
}

func (g *Group) tags() map[int]struct{} {
	return g.tagset
}

// Base returns the NUMINGROUP count field of the group.
func (g *Group) Base() *Field {
	return g.base
}

// Serialize encodes the count field followed by the repetitions.
func (g *Group) Serialize(reps []Payload) ([]byte, error) {
	out, err := g.appendRepetitions(nil, reps)
	if err != nil {
		return nil, err
	}
	return out[:len(out)-1], nil
}

func (g *Group) appendRepetitions(dst []byte, reps []Payload) ([]byte, error) {
	dst = append(dst, g.base.tagBytes...)
	dst = append(dst, strconv.Itoa(len(reps))...)
	dst = append(dst, separatorByte)

	delimiter := g.rows.items[0].comp.Name()
	for _, rep := range reps {
		if len(rep) == 0 || rep[0].Name != delimiter {
			return nil, errGroupDelimiterMissing(g.base.name)
		}
		var err error
		dst, err = g.rows.appendPayload(dst, rep, nil)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}
