package fix

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

type MessageCategory uint8

const (
	MessageCategoryAdmin MessageCategory = iota
	MessageCategoryApp

	messageCategoryAdminStr = "admin"
	messageCategoryAppStr   = "app"
)

var (
	messageCategoryAdminByte = []byte(`"admin"`)
	messageCategoryAppByte   = []byte(`"app"`)
)

func (mc MessageCategory) String() string {
	switch mc {
	case MessageCategoryAdmin:
		return messageCategoryAdminStr
	case MessageCategoryApp:
		return messageCategoryAppStr
	}
	panic("invalid message category string conversion" + strconv.Itoa(int(mc)))
}

func (mc MessageCategory) MarshalJSON() ([]byte, error) {
	switch mc {
	case MessageCategoryAdmin:
		return messageCategoryAdminByte, nil
	case MessageCategoryApp:
		return messageCategoryAppByte, nil
	}
	return nil, errors.New("invalid message category json conversion: " + strconv.Itoa(int(mc)))
}

func (mc *MessageCategory) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, messageCategoryAdminByte) {
		*mc = MessageCategoryAdmin
		return nil
	}
	if bytes.Equal(data, messageCategoryAppByte) {
		*mc = MessageCategoryApp
		return nil
	}
	return errors.New("unsupported message category: " + string(data))
}

func MessageCategoryStrToType(value string) (MessageCategory, error) {
	switch value {
	case messageCategoryAdminStr:
		return MessageCategoryAdmin, nil
	case messageCategoryAppStr:
		return MessageCategoryApp, nil
	}
	return 0, errors.New("unsupported message category: " + value)
}

// Message is a top-level composite. Its child list spans the protocol
// header (minus the managed fields), the declared message body and the
// trailer (minus CheckSum), so a single payload covers all three. Envelope
// construction happens in Protocol.Serialize; a Message holds no reference
// back to its protocol.
type Message struct {
	base     *baseComposite
	msgType  string
	category MessageCategory
}

func newMessage(name, msgType string, category MessageCategory, items []compositeItem) (*Message, error) {
	if len(msgType) == 0 || len(msgType) > 2 {
		return nil, &Error{Kind: ErrKindXmlMalformed, Name: name, Reason: "message type must be 1-2 chars: " + msgType}
	}
	base, err := newBaseComposite(name, KindMessage, items)
	if err != nil {
		return nil, err
	}
	return &Message{base: base, msgType: msgType, category: category}, nil
}

func (m *Message) Name() string {
	return m.base.name
}

func (m *Message) Kind() CompositeKind {
	return KindMessage
}

func (m *Message) tags() map[int]struct{} {
	return m.base.tagset
}

// MsgType returns the wire code of the message, e.g. "A" for Logon.
func (m *Message) MsgType() string {
	return m.msgType
}

func (m *Message) Category() MessageCategory {
	return m.category
}
