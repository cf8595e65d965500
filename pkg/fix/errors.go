package fix

import (
	"strconv"

	"github.com/pkg/errors"
)

// ErrNeedMore is returned by Parse when the buffer does not yet hold a
// complete message. No bytes are consumed; append more input and retry.
var ErrNeedMore = errors.New("need more data")

type ErrorKind uint8

const (
	ErrKindNone ErrorKind = iota

	// schema errors, fatal at construction
	ErrKindUnsupportedVersion
	ErrKindXmlMalformed
	ErrKindUnresolvedReference
	ErrKindUnresolvedField
	ErrKindProtocolMismatch

	// payload errors, returned by Serialize
	ErrKindUnknownChild
	ErrKindMissingRequired
	ErrKindDuplicate
	ErrKindInvalidValue
	ErrKindManagedConflict
	ErrKindGroupDelimiterMissing

	// wire errors, returned by Parse
	ErrKindNeedMore
	ErrKindFramingError
	ErrKindWrongProtocol
	ErrKindChecksumMismatch
	ErrKindMalformedField
	ErrKindUnknownTag
	ErrKindOutOfOrder
	ErrKindUnknownMessageType
	ErrKindCountMismatch
)

var errorKindMapping = map[ErrorKind]string{
	ErrKindNone:                  "none",
	ErrKindUnsupportedVersion:    "unsupportedVersion",
	ErrKindXmlMalformed:          "xmlMalformed",
	ErrKindUnresolvedReference:   "unresolvedReference",
	ErrKindUnresolvedField:       "unresolvedField",
	ErrKindProtocolMismatch:      "protocolMismatch",
	ErrKindUnknownChild:          "unknownChild",
	ErrKindMissingRequired:       "missingRequired",
	ErrKindDuplicate:             "duplicate",
	ErrKindInvalidValue:          "invalidValue",
	ErrKindManagedConflict:       "managedConflict",
	ErrKindGroupDelimiterMissing: "groupDelimiterMissing",
	ErrKindNeedMore:              "needMore",
	ErrKindFramingError:          "framingError",
	ErrKindWrongProtocol:         "wrongProtocol",
	ErrKindChecksumMismatch:      "checksumMismatch",
	ErrKindMalformedField:        "malformedField",
	ErrKindUnknownTag:            "unknownTag",
	ErrKindOutOfOrder:            "outOfOrder",
	ErrKindUnknownMessageType:    "unknownMessageType",
	ErrKindCountMismatch:         "countMismatch",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindMapping[k]; ok {
		return s
	}
	panic("invalid error kind string conversion" + strconv.Itoa(int(k)))
}

// Error carries the machine-readable kind plus whatever context the failing
// layer had at hand. Unused context fields stay zero.
type Error struct {
	Kind     ErrorKind
	Name     string
	Parent   string
	Expected string
	Got      string
	Tag      int
	Reason   string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Name != "" {
		msg += ": " + e.Name
	}
	if e.Tag != 0 {
		msg += ": tag " + strconv.Itoa(e.Tag)
	}
	if e.Parent != "" {
		msg += " in " + e.Parent
	}
	if e.Expected != "" || e.Got != "" {
		msg += ": expected " + e.Expected + ", got " + e.Got
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// KindOf extracts the ErrorKind from err, unwrapping any annotation layers.
// Plain errors map to ErrKindNone.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}
	if errors.Is(err, ErrNeedMore) {
		return ErrKindNeedMore
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindNone
}

func errUnsupportedVersion(version string) *Error {
	return &Error{Kind: ErrKindUnsupportedVersion, Got: version}
}

func errUnresolvedReference(name, referrer string) *Error {
	return &Error{Kind: ErrKindUnresolvedReference, Name: name, Parent: referrer}
}

func errUnresolvedField(name, referrer string) *Error {
	return &Error{Kind: ErrKindUnresolvedField, Name: name, Parent: referrer}
}

func errProtocolMismatch(expected, got string) *Error {
	return &Error{Kind: ErrKindProtocolMismatch, Expected: expected, Got: got}
}

func errUnknownChild(name, parent string) *Error {
	return &Error{Kind: ErrKindUnknownChild, Name: name, Parent: parent}
}

func errMissingRequired(name, parent string) *Error {
	return &Error{Kind: ErrKindMissingRequired, Name: name, Parent: parent}
}

func errDuplicate(name, parent string) *Error {
	return &Error{Kind: ErrKindDuplicate, Name: name, Parent: parent}
}

func errInvalidValue(field, reason string) *Error {
	return &Error{Kind: ErrKindInvalidValue, Name: field, Reason: reason}
}

func errManagedConflict(name string) *Error {
	return &Error{Kind: ErrKindManagedConflict, Name: name}
}

func errGroupDelimiterMissing(group string) *Error {
	return &Error{Kind: ErrKindGroupDelimiterMissing, Name: group}
}

func errFraming(reason string) *Error {
	return &Error{Kind: ErrKindFramingError, Reason: reason}
}

func errWrongProtocol(expected, got string) *Error {
	return &Error{Kind: ErrKindWrongProtocol, Expected: expected, Got: got}
}

func errChecksumMismatch(expected, got string) *Error {
	return &Error{Kind: ErrKindChecksumMismatch, Expected: expected, Got: got}
}

func errMalformedField(reason string) *Error {
	return &Error{Kind: ErrKindMalformedField, Reason: reason}
}

func errUnknownTag(tag int, context string) *Error {
	return &Error{Kind: ErrKindUnknownTag, Tag: tag, Parent: context}
}

func errOutOfOrder(tag int, context string) *Error {
	return &Error{Kind: ErrKindOutOfOrder, Tag: tag, Parent: context}
}

func errUnknownMessageType(code string) *Error {
	return &Error{Kind: ErrKindUnknownMessageType, Got: code}
}

func errCountMismatch(group string, declared, seen int) *Error {
	return &Error{
		Kind:     ErrKindCountMismatch,
		Name:     group,
		Expected: strconv.Itoa(declared),
		Got:      strconv.Itoa(seen),
	}
}
