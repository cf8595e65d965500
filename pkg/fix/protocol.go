package fix

import (
	"strconv"
)

// managedComposites are envelope fields the serializer controls. They are
// rejected in user payloads.
var managedComposites = map[string]struct{}{
	"BeginString": {},
	"BodyLength":  {},
	"MsgType":     {},
	"CheckSum":    {},
}

// Protocol is the immutable product of a schema load: lookup tables plus
// the pre-serialized envelope pieces. Read operations are safe for
// concurrent use; Extend is not and requires external serialization.
type Protocol struct {
	version string
	id      string

	beginString []byte
	header      *baseComposite
	trailer     *baseComposite

	// header/trailer children minus the managed fields, spliced into
	// every message declaration
	headerItems  []compositeItem
	trailerItems []compositeItem

	msgTypeField    *Field
	bodyLengthField *Field
	checkSumField   *Field

	fieldByName     map[string]*Field
	fieldByNumber   map[int]*Field
	componentByName map[string]*Component
	messageByName   map[string]*Message
	messageByType   map[string]*Message
}

// Version returns the short version tag, e.g. "fix44".
func (p *Protocol) Version() string {
	return p.version
}

// ID returns the protocol id carried in BeginString, e.g. "FIX.4.4".
func (p *Protocol) ID() string {
	return p.id
}

func (p *Protocol) FieldByName(name string) (*Field, bool) {
	f, ok := p.fieldByName[name]
	return f, ok
}

func (p *Protocol) FieldByNumber(number int) (*Field, bool) {
	f, ok := p.fieldByNumber[number]
	return f, ok
}

func (p *Protocol) ComponentByName(name string) (*Component, bool) {
	c, ok := p.componentByName[name]
	return c, ok
}

func (p *Protocol) MessageByName(name string) (*Message, bool) {
	m, ok := p.messageByName[name]
	return m, ok
}

// MessageByType looks a message up by its wire code, e.g. "A".
func (p *Protocol) MessageByType(code string) (*Message, bool) {
	m, ok := p.messageByType[code]
	return m, ok
}

// Serialize frames a payload as a complete wire message: BeginString,
// BodyLength, MsgType, the payload in caller order, CheckSum. The payload
// supplies header, body and trailer fields alike; managed fields are
// rejected.
func (p *Protocol) Serialize(name string, payload Payload) ([]byte, error) {
	msg, ok := p.messageByName[name]
	if !ok {
		return nil, errUnknownMessageType(name)
	}

	body := make([]byte, 0, 256)
	body = append(body, p.msgTypeField.tagBytes...)
	body = append(body, msg.msgType...)
	body = append(body, separatorByte)

	body, err := msg.base.appendPayload(body, payload, managedComposites)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(p.beginString)+len(body)+16)
	out = append(out, p.beginString...)
	out = append(out, separatorByte)
	out = append(out, p.bodyLengthField.tagBytes...)
	out = append(out, strconv.Itoa(len(body))...)
	out = append(out, separatorByte)
	out = append(out, body...)

	sum := checksum(out)
	out = append(out, p.checkSumField.tagBytes...)
	out = append(out, renderChecksum(sum)...)
	out = append(out, separatorByte)

	serializeCounters.WithLabelValues(p.version, msg.msgType).Inc()
	return out, nil
}

func checksum(data []byte) int {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return sum % 256
}

func renderChecksum(sum int) []byte {
	out := []byte{'0', '0', '0'}
	s := strconv.Itoa(sum)
	copy(out[3-len(s):], s)
	return out
}
