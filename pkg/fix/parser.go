package fix

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// ParseResult is a successfully framed and validated message: its
// declaration, the reconstructed payload and the number of bytes consumed
// from the input buffer.
type ParseResult struct {
	Message  *Message
	Payload  Payload
	Consumed int
}

type token struct {
	tag int
	raw []byte
}

type tokenCursor struct {
	toks []token
	pos  int
}

func (c *tokenCursor) empty() bool {
	return c.pos >= len(c.toks)
}

func (c *tokenCursor) peek() token {
	return c.toks[c.pos]
}

func (c *tokenCursor) next() token {
	t := c.toks[c.pos]
	c.pos++
	return t
}

// Parse frames and validates one message from buf. On ErrNeedMore no bytes
// are consumed; any other error leaves re-framing policy to the caller.
// Parse performs no I/O and is safe for concurrent use.
func (p *Protocol) Parse(buf []byte) (*ParseResult, error) {
	res, err := p.parse(buf)
	switch {
	case err == nil:
		parseCounters.WithLabelValues(p.version, "ok").Inc()
	case errors.Is(err, ErrNeedMore):
		parseCounters.WithLabelValues(p.version, "need_more").Inc()
	default:
		parseCounters.WithLabelValues(p.version, KindOf(err).String()).Inc()
	}
	return res, err
}

func (p *Protocol) parse(buf []byte) (*ParseResult, error) {
	body, bodyStart, declaredSum, err := p.frame(buf)
	if err != nil {
		return nil, err
	}
	consumed := bodyStart + len(body) + checkSumLen

	if sum := checksum(buf[:bodyStart+len(body)]); !bytes.Equal(renderChecksum(sum), declaredSum) {
		return nil, errChecksumMismatch(string(renderChecksum(sum)), string(declaredSum))
	}

	tokens, err := p.tokenize(body)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 || tokens[0].tag != p.msgTypeField.number {
		return nil, errFraming("MsgType must lead the body")
	}
	code := string(tokens[0].raw)
	msg, ok := p.messageByType[code]
	if !ok {
		return nil, errUnknownMessageType(code)
	}

	cur := &tokenCursor{toks: tokens[1:]}
	payload, err := msg.base.parseItems(cur, -1)
	if err != nil {
		return nil, err
	}
	if !cur.empty() {
		return nil, errUnknownTag(cur.peek().tag, msg.base.name)
	}

	return &ParseResult{Message: msg, Payload: payload, Consumed: consumed}, nil
}

// checkSumLen is the fixed width of the trailing "10=ddd<SOH>".
const checkSumLen = 7

// frame locates BeginString, BodyLength and CheckSum and returns the body
// bytes, the body offset and the declared checksum digits.
func (p *Protocol) frame(buf []byte) (body []byte, bodyStart int, declaredSum []byte, err error) {
	prefix := make([]byte, 0, len(p.beginString)+1)
	prefix = append(prefix, p.beginString...)
	prefix = append(prefix, separatorByte)

	if !bytes.HasPrefix(buf, prefix) {
		if bytes.HasPrefix(prefix, buf) {
			return nil, 0, nil, ErrNeedMore
		}
		if len(buf) < 2 || !bytes.HasPrefix(buf, []byte("8=")) {
			return nil, 0, nil, errFraming("message must start with BeginString")
		}
		got := buf[2:]
		if idx := bytes.IndexByte(got, separatorByte); idx != -1 {
			got = got[:idx]
		}
		return nil, 0, nil, errWrongProtocol(p.id, string(got))
	}

	pos := len(prefix)
	if len(buf) < pos+2 {
		return nil, 0, nil, ErrNeedMore
	}
	if buf[pos] != '9' || buf[pos+1] != '=' {
		return nil, 0, nil, errFraming("BodyLength must follow BeginString")
	}
	pos += 2
	lengthStart := pos
	for {
		if pos >= len(buf) {
			return nil, 0, nil, ErrNeedMore
		}
		if buf[pos] == separatorByte {
			break
		}
		if buf[pos] < '0' || buf[pos] > '9' {
			return nil, 0, nil, errMalformedField("body length is not a number")
		}
		pos++
	}
	if pos == lengthStart {
		return nil, 0, nil, errMalformedField("body length is empty")
	}
	bodyLen, err := strconv.Atoi(string(buf[lengthStart:pos]))
	if err != nil {
		return nil, 0, nil, errMalformedField("body length is not a number")
	}
	bodyStart = pos + 1

	if len(buf) < bodyStart+bodyLen+checkSumLen {
		return nil, 0, nil, ErrNeedMore
	}
	body = buf[bodyStart : bodyStart+bodyLen]
	if bodyLen == 0 || body[bodyLen-1] != separatorByte {
		return nil, 0, nil, errFraming("body must end with a separator")
	}

	trailer := buf[bodyStart+bodyLen : bodyStart+bodyLen+checkSumLen]
	if !bytes.HasPrefix(trailer, []byte("10=")) || trailer[6] != separatorByte {
		return nil, 0, nil, errFraming("CheckSum must follow the body")
	}
	declaredSum = trailer[3:6]
	for _, d := range declaredSum {
		if d < '0' || d > '9' {
			return nil, 0, nil, errMalformedField("checksum is not a number")
		}
	}
	return body, bodyStart, declaredSum, nil
}

// tokenize splits the body into (tag, value) tokens. DATA values are read
// by the immediately preceding LENGTH field and may contain the separator
// byte.
func (p *Protocol) tokenize(body []byte) ([]token, error) {
	tokens := make([]token, 0, 16)
	pendingLen := -1
	pos := 0
	for pos < len(body) {
		eq := bytes.IndexByte(body[pos:], '=')
		if eq == -1 {
			return nil, errMalformedField("field without '='")
		}
		if eq == 0 {
			return nil, errMalformedField("field with empty tag")
		}
		tag, err := strconv.Atoi(string(body[pos : pos+eq]))
		if err != nil {
			return nil, errMalformedField("field tag is not a number: " + string(body[pos:pos+eq]))
		}
		field := p.fieldByNumber[tag]
		valueStart := pos + eq + 1

		var raw []byte
		if field != nil && field.fieldType.isData() && pendingLen >= 0 {
			if valueStart+pendingLen >= len(body) || body[valueStart+pendingLen] != separatorByte {
				return nil, errMalformedField("data value overruns declared length")
			}
			raw = body[valueStart : valueStart+pendingLen]
			pos = valueStart + pendingLen + 1
		} else {
			soh := bytes.IndexByte(body[valueStart:], separatorByte)
			if soh == -1 {
				return nil, errMalformedField("field without terminator")
			}
			raw = body[valueStart : valueStart+soh]
			pos = valueStart + soh + 1
		}

		pendingLen = -1
		if field != nil && field.fieldType == FieldTypeLength {
			if n, err := strconv.Atoi(string(raw)); err == nil {
				pendingLen = n
			}
		}
		tokens = append(tokens, token{tag: tag, raw: raw})
	}
	return tokens, nil
}

// parseItems walks tokens against the declaration in order. stopTag marks
// the repetition delimiter when walking one group repetition: seeing it
// again ends the repetition instead of reporting a duplicate.
func (b *baseComposite) parseItems(cur *tokenCursor, stopTag int) (Payload, error) {
	payload := make(Payload, 0, len(b.items))
	seen := make([]bool, len(b.items))
	next := 0

	for !cur.empty() {
		t := cur.peek()
		j, ok := b.tagToItem[t.tag]
		if !ok {
			break
		}
		if j < next {
			if !seen[j] {
				return nil, errOutOfOrder(t.tag, b.name)
			}
			if t.tag == stopTag && j == 0 {
				break
			}
			return nil, errDuplicate(b.items[j].comp.Name(), b.name)
		}

		item := b.items[j]
		switch c := item.comp.(type) {
		case *Field:
			tok := cur.next()
			value, err := c.Deserialize(tok.raw)
			if err != nil {
				return nil, err
			}
			payload = append(payload, Pair{Name: c.name, Value: value})

		case *Component:
			nested, err := c.base.parseItems(cur, -1)
			if err != nil {
				return nil, err
			}
			payload = append(payload, Pair{Name: c.base.name, Value: nested})

		case *Group:
			reps, err := c.parseRepetitions(cur, b.name)
			if err != nil {
				return nil, err
			}
			payload = append(payload, Pair{Name: c.base.name, Value: reps})
		}
		seen[j] = true
		next = j + 1
	}

	for i, item := range b.items {
		if item.required && !seen[i] {
			return nil, errMissingRequired(item.comp.Name(), b.name)
		}
	}
	return payload, nil
}

// parseRepetitions consumes the count field and then repetitions, each
// opened by the delimiter tag, until a foreign tag terminates the group.
func (g *Group) parseRepetitions(cur *tokenCursor, parent string) ([]Payload, error) {
	tok := cur.next()
	if tok.tag != g.base.number {
		return nil, errOutOfOrder(tok.tag, parent)
	}
	value, err := g.base.Deserialize(tok.raw)
	if err != nil {
		return nil, err
	}
	n, ok := value.(int64)
	if !ok {
		return nil, errInvalidValue(g.base.name, "repetition count is not an integer")
	}
	count := int(n)

	// capacity from the wire is untrusted
	capHint := count
	if capHint < 0 || capHint > 16 {
		capHint = 16
	}
	reps := make([]Payload, 0, capHint)
	for !cur.empty() && cur.peek().tag == g.delimiterTag {
		rep, err := g.rows.parseItems(cur, g.delimiterTag)
		if err != nil {
			return nil, err
		}
		reps = append(reps, rep)
	}
	if len(reps) != count {
		return nil, errCountMismatch(g.base.name, count, len(reps))
	}
	return reps, nil
}
