package fix

import (
	"bytes"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// separatorByte is the SOH field terminator of FIX tag-value encoding.
const separatorByte = 0x01

type CompositeKind uint8

const (
	KindField CompositeKind = iota
	KindComponent
	KindGroup
	KindMessage

	kindFieldStr     = "field"
	kindComponentStr = "component"
	kindGroupStr     = "group"
	kindMessageStr   = "message"
)

var (
	kindFieldByte     = []byte(`"field"`)
	kindComponentByte = []byte(`"component"`)
	kindGroupByte     = []byte(`"group"`)
	kindMessageByte   = []byte(`"message"`)
)

func (ck CompositeKind) String() string {
	switch ck {
	case KindField:
		return kindFieldStr
	case KindComponent:
		return kindComponentStr
	case KindGroup:
		return kindGroupStr
	case KindMessage:
		return kindMessageStr
	}
	panic("invalid composite kind string conversion" + strconv.Itoa(int(ck)))
}

func (ck CompositeKind) MarshalJSON() ([]byte, error) {
	switch ck {
	case KindField:
		return kindFieldByte, nil
	case KindComponent:
		return kindComponentByte, nil
	case KindGroup:
		return kindGroupByte, nil
	case KindMessage:
		return kindMessageByte, nil
	}
	return nil, errors.New("invalid composite kind json conversion: " + strconv.Itoa(int(ck)))
}

func (ck *CompositeKind) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, kindFieldByte):
		*ck = KindField
	case bytes.Equal(data, kindComponentByte):
		*ck = KindComponent
	case bytes.Equal(data, kindGroupByte):
		*ck = KindGroup
	case bytes.Equal(data, kindMessageByte):
		*ck = KindMessage
	default:
		return errors.New("unsupported composite kind: " + string(data))
	}
	return nil
}

// Composite is anything that takes part in a message declaration: a field,
// a component, a group or a message itself.
type Composite interface {
	Name() string
	Kind() CompositeKind
	tags() map[int]struct{}
}

// Pair is one (name, value) element of a payload. Field values are scalars,
// component values are nested Payloads, group values are []Payload.
type Pair struct {
	Name  string
	Value any
}

// Payload is an ordered sequence of pairs. Order is preserved on
// serialization and reflects the declaration order on parse.
type Payload []Pair

// Get returns the value of the first pair with the given name.
func (p Payload) Get(name string) (any, bool) {
	for _, pair := range p {
		if pair.Name == name {
			return pair.Value, true
		}
	}
	return nil, false
}

// MarshalJSON renders the payload as a JSON object preserving pair order.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 64)
	out = append(out, '{')
	for i, pair := range p {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, strconv.Quote(pair.Name)...)
		out = append(out, ':')
		value, err := jsoniter.Marshal(pair.Value)
		if err != nil {
			return nil, errors.WithMessage(err, "fail marshal payload value "+pair.Name)
		}
		out = append(out, value...)
	}
	return append(out, '}'), nil
}

type compositeItem struct {
	comp     Composite
	required bool
}

// baseComposite holds the ordered (child, required) list shared by
// components, groups and messages.
type baseComposite struct {
	name      string
	kind      CompositeKind
	items     []compositeItem
	index     map[string]int
	tagset    map[int]struct{}
	tagToItem map[int]int
}

func newBaseComposite(name string, kind CompositeKind, items []compositeItem) (*baseComposite, error) {
	b := &baseComposite{
		name:      name,
		kind:      kind,
		items:     items,
		index:     make(map[string]int, len(items)),
		tagset:    make(map[int]struct{}),
		tagToItem: make(map[int]int),
	}
	for i, item := range items {
		child := item.comp.Name()
		if _, exists := b.index[child]; exists {
			return nil, errDuplicate(child, name)
		}
		b.index[child] = i
		for tag := range item.comp.tags() {
			b.tagset[tag] = struct{}{}
			b.tagToItem[tag] = i
		}
	}
	return b, nil
}

func (b *baseComposite) Name() string {
	return b.name
}

func (b *baseComposite) Kind() CompositeKind {
	return b.kind
}

func (b *baseComposite) tags() map[int]struct{} {
	return b.tagset
}

// appendPayload validates payload against the declaration and appends the
// encoded fields to dst, each terminated by the separator byte. The managed
// set is non-nil only at message level.
func (b *baseComposite) appendPayload(dst []byte, payload Payload, managed map[string]struct{}) ([]byte, error) {
	seen := make(map[string]struct{}, len(payload))
	lastLength := -1

	for _, pair := range payload {
		if managed != nil {
			if _, conflict := managed[pair.Name]; conflict {
				return nil, errManagedConflict(pair.Name)
			}
		}
		idx, ok := b.index[pair.Name]
		if !ok {
			return nil, errUnknownChild(pair.Name, b.name)
		}
		if _, dup := seen[pair.Name]; dup {
			return nil, errDuplicate(pair.Name, b.name)
		}
		seen[pair.Name] = struct{}{}

		var err error
		dst, lastLength, err = b.appendItem(dst, b.items[idx].comp, pair.Value, lastLength)
		if err != nil {
			return nil, err
		}
	}

	for _, item := range b.items {
		if !item.required {
			continue
		}
		if _, ok := seen[item.comp.Name()]; !ok {
			return nil, errMissingRequired(item.comp.Name(), b.name)
		}
	}
	return dst, nil
}

func (b *baseComposite) appendItem(dst []byte, comp Composite, value any, lastLength int) ([]byte, int, error) {
	switch c := comp.(type) {
	case *Field:
		encoded, err := c.Serialize(value)
		if err != nil {
			return nil, 0, err
		}
		valueLen := len(encoded) - len(c.tagBytes)
		if c.fieldType.isData() && lastLength >= 0 && lastLength != valueLen {
			return nil, 0, errInvalidValue(c.name, "data length differs from declared "+strconv.Itoa(lastLength))
		}
		nextLength := -1
		if c.fieldType == FieldTypeLength {
			if n, err := strconv.Atoi(string(encoded[len(c.tagBytes):])); err == nil {
				nextLength = n
			}
		}
		dst = append(dst, encoded...)
		return append(dst, separatorByte), nextLength, nil

	case *Component:
		nested, ok := value.(Payload)
		if !ok {
			return nil, 0, errInvalidValue(c.Name(), "component value must be a payload")
		}
		dst, err := c.base.appendPayload(dst, nested, nil)
		return dst, -1, err

	case *Group:
		reps, ok := value.([]Payload)
		if !ok {
			return nil, 0, errInvalidValue(c.Name(), "group value must be a repetition list")
		}
		dst, err := c.appendRepetitions(dst, reps)
		return dst, -1, err
	}
	return nil, 0, errors.New("unsupported composite kind in " + b.name)
}
