package fix

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	patternMonthYear   = regexp.MustCompile(`^\d{4}(0[1-9]|1[0-2])(\d{2}|w[1-5])?$`)
	patternDate        = regexp.MustCompile(`^\d{4}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])$`)
	patternTimeOnly    = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d:[0-5]\d(\.\d{3})?$`)
	patternTimestamp   = regexp.MustCompile(`^\d{4}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])-([01]\d|2[0-3]):[0-5]\d:[0-5]\d(\.\d{3})?$`)
	patternTZTimeOnly  = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?(Z|[+-]\d{2}(:\d{2})?)$`)
	patternTZTimestamp = regexp.MustCompile(`^\d{8}-([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?(Z|[+-]\d{2}(:\d{2})?)$`)
	patternFloat       = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	patternInt         = regexp.MustCompile(`^-?\d+$`)
	patternCountry     = regexp.MustCompile(`^[A-Z]{2}$`)
	patternCurrency    = regexp.MustCompile(`^[A-Z]{3}$`)
	patternLanguage    = regexp.MustCompile(`^[a-z]{2}$`)
)

// Field is a typed scalar with an optional enumeration. Instances are
// created by the schema loader and immutable thereafter.
type Field struct {
	number    int
	name      string
	fieldType FieldType

	enumByToken       map[string]string
	enumByDescription map[string]string
	tagBytes          []byte
	tagset            map[int]struct{}
}

func newField(number int, name string, ft FieldType) *Field {
	return &Field{
		number:    number,
		name:      name,
		fieldType: ft,
		tagBytes:  []byte(strconv.Itoa(number) + "="),
		tagset:    map[int]struct{}{number: {}},
	}
}

func (f *Field) addEnum(token, description string) error {
	if f.enumByToken == nil {
		f.enumByToken = make(map[string]string)
		f.enumByDescription = make(map[string]string)
	}
	if _, exists := f.enumByToken[token]; exists {
		return &Error{Kind: ErrKindXmlMalformed, Name: f.name, Reason: "duplicate enum token " + token}
	}
	f.enumByToken[token] = description
	f.enumByDescription[description] = token
	return nil
}

// Number returns the wire tag of the field.
func (f *Field) Number() int {
	return f.number
}

func (f *Field) Name() string {
	return f.name
}

// Type returns the FIX data type of the field.
func (f *Field) Type() FieldType {
	return f.fieldType
}

func (f *Field) Kind() CompositeKind {
	return KindField
}

func (f *Field) tags() map[int]struct{} {
	return f.tagset
}

// HasEnum reports whether the field carries an enumeration.
func (f *Field) HasEnum() bool {
	return f.enumByToken != nil
}

// EnumDescription returns the human description of a raw enum token.
func (f *Field) EnumDescription(token string) (string, bool) {
	d, ok := f.enumByToken[token]
	return d, ok
}

// Serialize renders "<tag>=<value>". Enum fields accept either the raw
// token or its description; both render to the token.
func (f *Field) Serialize(value any) ([]byte, error) {
	rendered, err := f.render(value)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(f.tagBytes)+len(rendered))
	out = append(out, f.tagBytes...)
	out = append(out, rendered...)
	return out, nil
}

func (f *Field) render(value any) ([]byte, error) {
	if f.enumByToken != nil {
		return f.renderEnum(value)
	}

	switch {
	case f.fieldType.isInt():
		return f.renderInt(value)
	case f.fieldType.isFloat():
		return f.renderFloat(value)
	case f.fieldType.isData():
		return f.renderData(value)
	}

	switch f.fieldType {
	case FieldTypeBoolean:
		return f.renderBoolean(value)
	case FieldTypeChar:
		return f.renderChar(value)
	}

	s, ok := value.(string)
	if !ok {
		return nil, errInvalidValue(f.name, "not a string")
	}
	if pattern := f.fieldType.pattern(); pattern != nil && !pattern.MatchString(s) {
		return nil, errInvalidValue(f.name, "malformed "+f.fieldType.String()+" value "+s)
	}
	if err := checkRawString(f.name, s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (f *Field) renderEnum(value any) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		if n, isInt := intValue(value); isInt {
			s, ok = strconv.FormatInt(n, 10), true
		}
		if !ok {
			return nil, errInvalidValue(f.name, "enum value must be a string")
		}
	}
	if _, exists := f.enumByToken[s]; exists {
		return []byte(s), nil
	}
	if token, exists := f.enumByDescription[s]; exists {
		return []byte(token), nil
	}
	return nil, errInvalidValue(f.name, "not in enumeration: "+s)
}

func (f *Field) renderInt(value any) ([]byte, error) {
	if n, ok := intValue(value); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	if s, ok := value.(string); ok && patternInt.MatchString(s) {
		return []byte(s), nil
	}
	return nil, errInvalidValue(f.name, "not an integer")
}

func (f *Field) renderFloat(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		if patternFloat.MatchString(v) {
			return []byte(v), nil
		}
	case float64:
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case float32:
		return []byte(strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	default:
		if n, ok := intValue(value); ok {
			return []byte(strconv.FormatInt(n, 10)), nil
		}
	}
	return nil, errInvalidValue(f.name, "not a decimal")
}

func (f *Field) renderBoolean(value any) ([]byte, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return []byte("Y"), nil
		}
		return []byte("N"), nil
	case string:
		if v == "Y" || v == "N" {
			return []byte(v), nil
		}
	}
	return nil, errInvalidValue(f.name, "boolean accepts only Y/N")
}

func (f *Field) renderChar(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		if len(v) == 1 && v[0] != separatorByte && v[0] != '=' {
			return []byte(v), nil
		}
	case byte:
		if v != separatorByte && v != '=' {
			return []byte{v}, nil
		}
	}
	return nil, errInvalidValue(f.name, "not a single char")
}

func (f *Field) renderData(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		if len(v) > 0 {
			return v, nil
		}
	case string:
		if len(v) > 0 {
			return []byte(v), nil
		}
	}
	return nil, errInvalidValue(f.name, "data value is empty")
}

// Deserialize is the inverse of Serialize for the value part: raw wire
// bytes in, typed value out.
func (f *Field) Deserialize(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, errInvalidValue(f.name, "empty value")
	}
	s := string(raw)

	if f.enumByToken != nil {
		if _, exists := f.enumByToken[s]; !exists {
			return nil, errInvalidValue(f.name, "not in enumeration: "+s)
		}
		return s, nil
	}

	switch {
	case f.fieldType.isInt():
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errInvalidValue(f.name, "not an integer: "+s)
		}
		return n, nil
	case f.fieldType.isFloat():
		if !patternFloat.MatchString(s) {
			return nil, errInvalidValue(f.name, "not a decimal: "+s)
		}
		return s, nil
	case f.fieldType.isData():
		return raw, nil
	}

	switch f.fieldType {
	case FieldTypeBoolean:
		switch s {
		case "Y":
			return true, nil
		case "N":
			return false, nil
		}
		return nil, errInvalidValue(f.name, "boolean accepts only Y/N")
	case FieldTypeChar:
		if len(s) != 1 {
			return nil, errInvalidValue(f.name, "not a single char: "+s)
		}
		return s, nil
	}

	if pattern := f.fieldType.pattern(); pattern != nil && !pattern.MatchString(s) {
		return nil, errInvalidValue(f.name, "malformed "+f.fieldType.String()+" value "+s)
	}
	return s, nil
}

func (ft FieldType) pattern() *regexp.Regexp {
	switch ft {
	case FieldTypeMonthYear:
		return patternMonthYear
	case FieldTypeLocalMktDate, FieldTypeUTCDate, FieldTypeUTCDateOnly:
		return patternDate
	case FieldTypeUTCTimeOnly:
		return patternTimeOnly
	case FieldTypeUTCTimestamp:
		return patternTimestamp
	case FieldTypeTZTimeOnly:
		return patternTZTimeOnly
	case FieldTypeTZTimestamp:
		return patternTZTimestamp
	case FieldTypeCountry:
		return patternCountry
	case FieldTypeCurrency:
		return patternCurrency
	case FieldTypeLanguage:
		return patternLanguage
	}
	return nil
}

func checkRawString(field, s string) error {
	if len(s) == 0 {
		return errInvalidValue(field, "empty value")
	}
	if strings.IndexByte(s, separatorByte) != -1 {
		return errInvalidValue(field, "value contains separator byte")
	}
	if strings.IndexByte(s, '=') != -1 {
		return errInvalidValue(field, "value contains '='")
	}
	return nil
}

func intValue(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		return int64(v), true
	}
	return 0, false
}
