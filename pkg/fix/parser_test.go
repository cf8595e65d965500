package fix_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gotest.tools/assert"

	"gitlab.heather.loc/helios/fix/pkg/fix"
)

// frameMessage wraps a body in a valid envelope so malformed bodies can be
// fed to the parser without tripping the checksum first.
func frameMessage(body string) []byte {
	head := "8=FIX.4.4\x019=" + strconv.Itoa(len(body)) + "\x01"
	sum := 0
	for _, b := range []byte(head + body) {
		sum += int(b)
	}
	return []byte(head + body + fmt.Sprintf("10=%03d\x01", sum%256))
}

func TestParseLogonRoundTrip(t *testing.T) {
	p := loadFix44(t)

	out, err := p.Serialize("Logon", logonPayload())
	assert.NilError(t, err)

	res, err := p.Parse(out)
	assert.NilError(t, err)
	assert.Equal(t, res.Message.Name(), "Logon")
	assert.Equal(t, res.Consumed, len(out), "whole frame consumed")

	expected := logonPayload()
	expected[4].Value = "0" // enum description came back as its token
	assert.DeepEqual(t, res.Payload, expected)

	// repeated serialize/parse is idempotent
	again, err := p.Serialize("Logon", res.Payload)
	assert.NilError(t, err)
	assert.DeepEqual(t, out, again)
}

func TestParseNeedMore(t *testing.T) {
	p := loadFix44(t)

	out, err := p.Serialize("Logon", logonPayload())
	assert.NilError(t, err)

	for _, cut := range []int{1, len(out) / 2, len(out) - 1} {
		res, err := p.Parse(out[:len(out)-cut])
		assert.Check(t, errors.Is(err, fix.ErrNeedMore), "cut %d", cut)
		assert.Check(t, res == nil, "no bytes consumed")
	}

	res, err := p.Parse(nil)
	assert.Check(t, errors.Is(err, fix.ErrNeedMore))
	assert.Check(t, res == nil)
}

func TestParseTwoMessagesBackToBack(t *testing.T) {
	p := loadFix44(t)

	first, err := p.Serialize("Logon", logonPayload())
	assert.NilError(t, err)
	second, err := p.Serialize("Heartbeat", fix.Payload{
		{Name: "SenderCompID", Value: "CLIENT1"},
		{Name: "TargetCompID", Value: "BROKER"},
		{Name: "MsgSeqNum", Value: int64(2)},
		{Name: "SendingTime", Value: "20090107-18:15:17"},
	})
	assert.NilError(t, err)

	buf := append(append([]byte{}, first...), second...)
	res, err := p.Parse(buf)
	assert.NilError(t, err)
	assert.Equal(t, res.Message.Name(), "Logon")
	assert.Equal(t, res.Consumed, len(first))

	res, err = p.Parse(buf[res.Consumed:])
	assert.NilError(t, err)
	assert.Equal(t, res.Message.Name(), "Heartbeat")
	assert.Equal(t, res.Consumed, len(second))
}

func TestParseChecksumMismatch(t *testing.T) {
	p := loadFix44(t)

	out, err := p.Serialize("Logon", logonPayload())
	assert.NilError(t, err)

	mutated := append([]byte{}, out...)
	last := mutated[len(mutated)-2]
	mutated[len(mutated)-2] = '0' + (last-'0'+1)%10

	_, err = p.Parse(mutated)
	assert.Equal(t, fix.KindOf(err), fix.ErrKindChecksumMismatch)
}

func TestParseWrongProtocol(t *testing.T) {
	p := loadFix44(t)

	out, err := p.Serialize("Logon", logonPayload())
	assert.NilError(t, err)
	mutated := bytes.Replace(out, []byte("8=FIX.4.4"), []byte("8=FIX.4.2"), 1)

	_, err = p.Parse(mutated)
	assert.Equal(t, fix.KindOf(err), fix.ErrKindWrongProtocol)

	_, err = p.Parse([]byte("garbage"))
	assert.Equal(t, fix.KindOf(err), fix.ErrKindFramingError)
}

func TestParseUnknownMessageType(t *testing.T) {
	p := loadFix44(t)

	_, err := p.Parse(frameMessage("35=ZZ\x0149=CLIENT1\x01"))
	assert.Equal(t, fix.KindOf(err), fix.ErrKindUnknownMessageType)
}

func TestParseMalformedField(t *testing.T) {
	p := loadFix44(t)

	_, err := p.Parse(frameMessage("35=0\x01=abc\x01"))
	assert.Equal(t, fix.KindOf(err), fix.ErrKindMalformedField, "empty tag")

	_, err = p.Parse(frameMessage("35=0\x01abc\x01"))
	assert.Equal(t, fix.KindOf(err), fix.ErrKindMalformedField, "missing '='")

	_, err = p.Parse(frameMessage("35=0\x01x9=1\x01"))
	assert.Equal(t, fix.KindOf(err), fix.ErrKindMalformedField, "non-numeric tag")
}

func TestParseValidationErrors(t *testing.T) {
	p := loadFix44(t)

	header := "49=CLIENT1\x0156=BROKER\x0134=1\x0152=20090107-18:15:16\x01"

	t.Run("unknown tag", func(t *testing.T) {
		_, err := p.Parse(frameMessage("35=A\x01" + header + "98=0\x01108=30\x019999=x\x01"))
		assert.Equal(t, fix.KindOf(err), fix.ErrKindUnknownTag)
	})

	t.Run("out of order", func(t *testing.T) {
		_, err := p.Parse(frameMessage("35=A\x01" + header + "108=30\x0198=0\x01"))
		assert.Equal(t, fix.KindOf(err), fix.ErrKindOutOfOrder)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := p.Parse(frameMessage("35=A\x01" + header + "98=0\x0198=0\x01108=30\x01"))
		assert.Equal(t, fix.KindOf(err), fix.ErrKindDuplicate)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := p.Parse(frameMessage("35=A\x01" + header + "98=0\x01"))
		assert.Equal(t, fix.KindOf(err), fix.ErrKindMissingRequired)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := p.Parse(frameMessage("35=A\x01" + header + "98=0\x01108=soon\x01"))
		assert.Equal(t, fix.KindOf(err), fix.ErrKindInvalidValue)
	})
}

func TestParseGroupRoundTrip(t *testing.T) {
	p := loadFix44(t)

	allocs := []fix.Payload{
		{{Name: "AllocAccount", Value: "A1"}, {Name: "AllocQty", Value: "50"}},
		{{Name: "AllocAccount", Value: "A2"}, {Name: "AllocQty", Value: "50"}},
	}
	out, err := p.Serialize("NewOrderSingle", newOrderSinglePayload(allocs))
	assert.NilError(t, err)

	res, err := p.Parse(out)
	assert.NilError(t, err)
	assert.Equal(t, res.Message.Name(), "NewOrderSingle")

	value, ok := res.Payload.Get("NoAllocs")
	assert.Check(t, ok)
	reps := value.([]fix.Payload)
	assert.Equal(t, len(reps), 2)
	assert.DeepEqual(t, reps, allocs)

	side, ok := res.Payload.Get("Side")
	assert.Check(t, ok)
	assert.Equal(t, side, "1", "enum token form")

	instrument, ok := res.Payload.Get("Instrument")
	assert.Check(t, ok)
	assert.DeepEqual(t, instrument, fix.Payload{{Name: "Symbol", Value: "EURUSD"}})
}

func TestParseGroupZeroRepetitions(t *testing.T) {
	p := loadFix44(t)

	out, err := p.Serialize("NewOrderSingle", newOrderSinglePayload([]fix.Payload{}))
	assert.NilError(t, err)

	res, err := p.Parse(out)
	assert.NilError(t, err)
	value, ok := res.Payload.Get("NoAllocs")
	assert.Check(t, ok)
	assert.Equal(t, len(value.([]fix.Payload)), 0)
}

func TestParseGroupCountMismatch(t *testing.T) {
	p := loadFix44(t)

	allocs := []fix.Payload{
		{{Name: "AllocAccount", Value: "A1"}, {Name: "AllocQty", Value: "50"}},
		{{Name: "AllocAccount", Value: "A2"}, {Name: "AllocQty", Value: "50"}},
	}
	out, err := p.Serialize("NewOrderSingle", newOrderSinglePayload(allocs))
	assert.NilError(t, err)

	// body starts after "9=<n><SOH>"; rebuild the frame with a lying count
	bodyStart := bytes.Index(out, []byte("\x0135=")) + 1
	body := string(out[bodyStart : len(out)-7])
	body = string(bytes.Replace([]byte(body), []byte("78=2\x01"), []byte("78=3\x01"), 1))

	_, err = p.Parse(frameMessage(body))
	assert.Equal(t, fix.KindOf(err), fix.ErrKindCountMismatch)
}

func TestParseDataWithSeparator(t *testing.T) {
	p := loadFix44(t)

	raw := []byte("ab\x01cd=ef")
	payload := append(logonPayload(),
		fix.Pair{Name: "RawDataLength", Value: int64(len(raw))},
		fix.Pair{Name: "RawData", Value: raw},
	)
	out, err := p.Serialize("Logon", payload)
	assert.NilError(t, err)

	res, err := p.Parse(out)
	assert.NilError(t, err)

	value, ok := res.Payload.Get("RawData")
	assert.Check(t, ok)
	assert.DeepEqual(t, value, raw)
}

func TestParseNestedGroups(t *testing.T) {
	p := loadFix44(t)

	allocs := []fix.Payload{
		{
			{Name: "AllocAccount", Value: "A1"},
			{Name: "NestedParties", Value: fix.Payload{
				{Name: "NoNestedPartyIDs", Value: []fix.Payload{
					{{Name: "NestedPartyID", Value: "trader-7"}, {Name: "NestedPartyRole", Value: int64(12)}},
				}},
			}},
			{Name: "AllocQty", Value: "100"},
		},
	}
	out, err := p.Serialize("NewOrderSingle", newOrderSinglePayload(allocs))
	assert.NilError(t, err)
	assert.Check(t, bytes.Contains(out, []byte("78=1\x0179=A1\x01539=1\x01524=trader-7\x01538=12\x0180=100\x01")))

	res, err := p.Parse(out)
	assert.NilError(t, err)
	value, ok := res.Payload.Get("NoAllocs")
	assert.Check(t, ok)
	assert.DeepEqual(t, value, allocs)
}

func TestPayloadMarshalJSON(t *testing.T) {
	payload := fix.Payload{
		{Name: "ClOrdID", Value: "ord-1"},
		{Name: "NoAllocs", Value: []fix.Payload{
			{{Name: "AllocAccount", Value: "A1"}, {Name: "AllocQty", Value: "50"}},
		}},
		{Name: "MsgSeqNum", Value: int64(2)},
	}
	expected := `{"ClOrdID":"ord-1","NoAllocs":[{"AllocAccount":"A1","AllocQty":"50"}],"MsgSeqNum":2}`

	val, err := json.Marshal(payload)
	assert.NilError(t, err)
	assert.Equal(t, string(val), expected, "std json")

	val, err = jsoniter.Marshal(payload)
	assert.NilError(t, err)
	assert.Equal(t, string(val), expected, "jsoniter")
}
