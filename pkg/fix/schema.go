package fix

import (
	"encoding/xml"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type xmlValue struct {
	Enum        string `xml:"enum,attr"`
	Description string `xml:"description,attr"`
}

type xmlField struct {
	Number int        `xml:"number,attr"`
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr"`
	Values []xmlValue `xml:"value"`
}

// xmlEntry covers <field>, <component> and <group> references; groups
// recurse through Entries.
type xmlEntry struct {
	XMLName  xml.Name
	Name     string     `xml:"name,attr"`
	Required string     `xml:"required,attr"`
	Entries  []xmlEntry `xml:",any"`
}

type xmlComponent struct {
	Name    string     `xml:"name,attr"`
	Entries []xmlEntry `xml:",any"`
}

type xmlMessage struct {
	Name    string     `xml:"name,attr"`
	MsgType string     `xml:"msgtype,attr"`
	MsgCat  string     `xml:"msgcat,attr"`
	Entries []xmlEntry `xml:",any"`
}

type xmlEntrySet struct {
	Entries []xmlEntry `xml:",any"`
}

type xmlSpec struct {
	Type       string         `xml:"type,attr"`
	Major      string         `xml:"major,attr"`
	Minor      string         `xml:"minor,attr"`
	Header     xmlEntrySet    `xml:"header"`
	Trailer    xmlEntrySet    `xml:"trailer"`
	Messages   []xmlMessage   `xml:"messages>message"`
	Components []xmlComponent `xml:"components>component"`
	Fields     []xmlField     `xml:"fields>field"`
}

func (s *xmlSpec) id() string {
	return s.Type + "." + s.Major + "." + s.Minor
}

// loader builds the protocol lookups from a decoded schema. The maps are
// the protocol's own tables, so an extension pass merges in place.
type loader struct {
	logger          *zap.Logger
	fieldByName     map[string]*Field
	fieldByNumber   map[int]*Field
	componentByName map[string]*Component
}

// ParseProtocol constructs a Protocol from raw schema XML.
func ParseProtocol(logger *zap.Logger, xmlData []byte) (*Protocol, error) {
	spec, err := decodeSpec(xmlData)
	if err != nil {
		return nil, err
	}
	major, err := strconv.Atoi(spec.Major)
	if err != nil || spec.Type != "FIX" || major < 4 {
		return nil, errUnsupportedVersion(spec.id())
	}

	l := &loader{
		logger:          logger,
		fieldByName:     make(map[string]*Field),
		fieldByNumber:   make(map[int]*Field),
		componentByName: make(map[string]*Component),
	}
	if err = l.buildFields(spec.Fields); err != nil {
		return nil, err
	}
	if err = l.buildComponents(spec.Components); err != nil {
		return nil, err
	}

	headerItems, missing, err := l.buildItems(spec.Header.Entries, "header")
	if err != nil {
		return nil, err
	}
	if missing != "" {
		return nil, errUnresolvedReference(missing, "header")
	}
	trailerItems, missing, err := l.buildItems(spec.Trailer.Entries, "trailer")
	if err != nil {
		return nil, err
	}
	if missing != "" {
		return nil, errUnresolvedReference(missing, "trailer")
	}

	header, err := newBaseComposite("header", KindComponent, headerItems)
	if err != nil {
		return nil, err
	}
	trailer, err := newBaseComposite("trailer", KindComponent, trailerItems)
	if err != nil {
		return nil, err
	}

	p := &Protocol{
		version:         "fix" + spec.Major + spec.Minor,
		id:              spec.id(),
		beginString:     []byte("8=" + spec.id()),
		header:          header,
		trailer:         trailer,
		headerItems:     dropManaged(headerItems),
		trailerItems:    dropManaged(trailerItems),
		fieldByName:     l.fieldByName,
		fieldByNumber:   l.fieldByNumber,
		componentByName: l.componentByName,
		messageByName:   make(map[string]*Message),
		messageByType:   make(map[string]*Message),
	}
	for _, name := range []string{"BeginString", "BodyLength", "MsgType", "CheckSum"} {
		if _, ok := l.fieldByName[name]; !ok {
			return nil, &Error{Kind: ErrKindXmlMalformed, Name: name, Reason: "managed field missing from schema"}
		}
	}
	p.msgTypeField = l.fieldByName["MsgType"]
	p.bodyLengthField = l.fieldByName["BodyLength"]
	p.checkSumField = l.fieldByName["CheckSum"]

	if err = l.buildMessages(p, spec.Messages); err != nil {
		return nil, err
	}

	logger.Info("schema: protocol loaded",
		zap.String("protocol", p.id),
		zap.Int("fields", len(p.fieldByName)),
		zap.Int("components", len(p.componentByName)),
		zap.Int("messages", len(p.messageByName)))
	return p, nil
}

// Extend overlays an additional schema whose protocol id must match.
// Fields and messages merge last-writer-wins. Not safe against concurrent
// use of the protocol; callers serialize externally.
func (p *Protocol) Extend(logger *zap.Logger, xmlData []byte) error {
	spec, err := decodeSpec(xmlData)
	if err != nil {
		return err
	}
	if spec.id() != p.id {
		return errProtocolMismatch(p.id, spec.id())
	}

	l := &loader{
		logger:          logger,
		fieldByName:     p.fieldByName,
		fieldByNumber:   p.fieldByNumber,
		componentByName: p.componentByName,
	}
	if err = l.buildFields(spec.Fields); err != nil {
		return err
	}
	if err = l.buildMessages(p, spec.Messages); err != nil {
		return err
	}

	logger.Info("schema: protocol extended",
		zap.String("protocol", p.id),
		zap.Int("fields", len(spec.Fields)),
		zap.Int("messages", len(spec.Messages)))
	return nil
}

func decodeSpec(xmlData []byte) (*xmlSpec, error) {
	spec := &xmlSpec{}
	if err := xml.Unmarshal(xmlData, spec); err != nil {
		return nil, errors.WithMessage(&Error{Kind: ErrKindXmlMalformed, Reason: err.Error()}, "fail decode schema xml")
	}
	return spec, nil
}

func (l *loader) buildFields(fields []xmlField) error {
	for _, xf := range fields {
		ft, err := FieldTypeStrToType(xf.Type)
		if err != nil {
			return &Error{Kind: ErrKindXmlMalformed, Name: xf.Name, Reason: err.Error()}
		}
		if xf.Number <= 0 || xf.Name == "" {
			return &Error{Kind: ErrKindXmlMalformed, Name: xf.Name, Reason: "field needs positive number and name"}
		}
		f := newField(xf.Number, xf.Name, ft)
		for _, v := range xf.Values {
			if err = f.addEnum(v.Enum, v.Description); err != nil {
				return err
			}
		}
		l.fieldByName[f.name] = f
		l.fieldByNumber[f.number] = f
	}
	return nil
}

// buildComponents resolves the component set with a retry queue: a
// component whose <component> references are not constructible yet goes
// back on the queue. A full pass without progress means an unknown name or
// a reference cycle.
func (l *loader) buildComponents(components []xmlComponent) error {
	queue := components
	for len(queue) > 0 {
		var retry []xmlComponent
		var missingName, missingReferrer string

		for _, xc := range queue {
			items, missing, err := l.buildItems(xc.Entries, xc.Name)
			if err != nil {
				return errors.WithMessage(err, "fail build component "+xc.Name)
			}
			if missing != "" {
				l.logger.Debug("schema: defer component",
					zap.String("component", xc.Name), zap.String("missing", missing))
				retry = append(retry, xc)
				missingName, missingReferrer = missing, xc.Name
				continue
			}
			comp, err := newComponent(xc.Name, items)
			if err != nil {
				return errors.WithMessage(err, "fail build component "+xc.Name)
			}
			l.componentByName[xc.Name] = comp
		}

		if len(retry) == len(queue) {
			return errUnresolvedReference(missingName, missingReferrer)
		}
		queue = retry
	}
	return nil
}

func (l *loader) buildMessages(p *Protocol, messages []xmlMessage) error {
	for _, xm := range messages {
		category, err := MessageCategoryStrToType(xm.MsgCat)
		if err != nil {
			return &Error{Kind: ErrKindXmlMalformed, Name: xm.Name, Reason: err.Error()}
		}
		own, missing, err := l.buildItems(xm.Entries, xm.Name)
		if err != nil {
			return errors.WithMessage(err, "fail build message "+xm.Name)
		}
		if missing != "" {
			return errUnresolvedReference(missing, xm.Name)
		}

		items := make([]compositeItem, 0, len(p.headerItems)+len(own)+len(p.trailerItems))
		items = append(items, p.headerItems...)
		items = append(items, own...)
		items = append(items, p.trailerItems...)

		msg, err := newMessage(xm.Name, xm.MsgType, category, items)
		if err != nil {
			return errors.WithMessage(err, "fail build message "+xm.Name)
		}
		p.messageByName[xm.Name] = msg
		p.messageByType[xm.MsgType] = msg
	}
	return nil
}

// buildItems resolves entry references. A missing component name is
// returned for deferral; a missing field is fatal. Groups resolve their
// inner component references first, then their base and member fields.
func (l *loader) buildItems(entries []xmlEntry, referrer string) ([]compositeItem, string, error) {
	items := make([]compositeItem, 0, len(entries))
	for _, e := range entries {
		required := e.Required == "Y"
		switch e.XMLName.Local {
		case "field":
			f, ok := l.fieldByName[e.Name]
			if !ok {
				return nil, "", errUnresolvedField(e.Name, referrer)
			}
			items = append(items, compositeItem{comp: f, required: required})

		case "component":
			c, ok := l.componentByName[e.Name]
			if !ok {
				return nil, e.Name, nil
			}
			items = append(items, compositeItem{comp: c, required: required})

		case "group":
			inner, missing, err := l.buildItems(e.Entries, e.Name)
			if err != nil {
				return nil, "", err
			}
			if missing != "" {
				return nil, missing, nil
			}
			base, ok := l.fieldByName[e.Name]
			if !ok {
				return nil, "", errUnresolvedField(e.Name, referrer)
			}
			g, err := newGroup(base, inner)
			if err != nil {
				return nil, "", err
			}
			items = append(items, compositeItem{comp: g, required: required})

		default:
			return nil, "", &Error{
				Kind:   ErrKindXmlMalformed,
				Name:   e.XMLName.Local,
				Parent: referrer,
				Reason: "unsupported schema element",
			}
		}
	}
	return items, "", nil
}

func dropManaged(items []compositeItem) []compositeItem {
	kept := make([]compositeItem, 0, len(items))
	for _, item := range items {
		if _, managed := managedComposites[item.comp.Name()]; managed {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
