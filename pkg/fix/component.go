package fix

// Component is a named reusable grouping of composites. Its serialized
// bytes are indistinguishable from its children appearing inline at the
// point of reference.
type Component struct {
	base *baseComposite
}

func newComponent(name string, items []compositeItem) (*Component, error) {
	base, err := newBaseComposite(name, KindComponent, items)
	if err != nil {
		return nil, err
	}
	return &Component{base: base}, nil
}

func (c *Component) Name() string {
	return c.base.name
}

func (c *Component) Kind() CompositeKind {
	return KindComponent
}

func (c *Component) tags() map[int]struct{} {
	return c.base.tagset
}

// Serialize encodes a nested payload against the component declaration.
func (c *Component) Serialize(payload Payload) ([]byte, error) {
	out, err := c.base.appendPayload(nil, payload, nil)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		out = out[:len(out)-1] // no trailing separator on the outer surface
	}
	return out, nil
}
