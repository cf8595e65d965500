package fix

import (
	"strconv"

	"github.com/pkg/errors"
)

type FieldType uint8

const (
	FieldTypeString FieldType = iota
	FieldTypeInt
	FieldTypeLength
	FieldTypeSeqNum
	FieldTypeNumInGroup
	FieldTypeFloat
	FieldTypeAmt
	FieldTypePrice
	FieldTypePriceOffset
	FieldTypeQty
	FieldTypePercentage
	FieldTypeChar
	FieldTypeBoolean
	FieldTypeData
	FieldTypeMultipleValueString
	FieldTypeMultipleCharValue
	FieldTypeMultipleStringValue
	FieldTypeCountry
	FieldTypeCurrency
	FieldTypeExchange
	FieldTypeMonthYear
	FieldTypeLocalMktDate
	FieldTypeUTCDate
	FieldTypeUTCDateOnly
	FieldTypeUTCTimeOnly
	FieldTypeUTCTimestamp
	FieldTypeTZTimeOnly
	FieldTypeTZTimestamp
	FieldTypeLanguage
	FieldTypeXMLData
)

var fieldTypeMapping = map[FieldType]string{
	FieldTypeString:              "STRING",
	FieldTypeInt:                 "INT",
	FieldTypeLength:              "LENGTH",
	FieldTypeSeqNum:              "SEQNUM",
	FieldTypeNumInGroup:          "NUMINGROUP",
	FieldTypeFloat:               "FLOAT",
	FieldTypeAmt:                 "AMT",
	FieldTypePrice:               "PRICE",
	FieldTypePriceOffset:         "PRICEOFFSET",
	FieldTypeQty:                 "QTY",
	FieldTypePercentage:          "PERCENTAGE",
	FieldTypeChar:                "CHAR",
	FieldTypeBoolean:             "BOOLEAN",
	FieldTypeData:                "DATA",
	FieldTypeMultipleValueString: "MULTIPLEVALUESTRING",
	FieldTypeMultipleCharValue:   "MULTIPLECHARVALUE",
	FieldTypeMultipleStringValue: "MULTIPLESTRINGVALUE",
	FieldTypeCountry:             "COUNTRY",
	FieldTypeCurrency:            "CURRENCY",
	FieldTypeExchange:            "EXCHANGE",
	FieldTypeMonthYear:           "MONTHYEAR",
	FieldTypeLocalMktDate:        "LOCALMKTDATE",
	FieldTypeUTCDate:             "UTCDATE",
	FieldTypeUTCDateOnly:         "UTCDATEONLY",
	FieldTypeUTCTimeOnly:         "UTCTIMEONLY",
	FieldTypeUTCTimestamp:        "UTCTIMESTAMP",
	FieldTypeTZTimeOnly:          "TZTIMEONLY",
	FieldTypeTZTimestamp:         "TZTIMESTAMP",
	FieldTypeLanguage:            "LANGUAGE",
	FieldTypeXMLData:             "XMLDATA",
}

var fieldTypeUnMapping = map[string]FieldType{}

func init() {
	for ft, name := range fieldTypeMapping {
		fieldTypeUnMapping[name] = ft
	}
}

func (ft FieldType) String() string {
	if s, ok := fieldTypeMapping[ft]; ok {
		return s
	}
	panic("invalid field type string conversion" + strconv.Itoa(int(ft)))
}

func (ft FieldType) MarshalJSON() ([]byte, error) {
	s, ok := fieldTypeMapping[ft]
	if !ok {
		return nil, errors.New("invalid field type json conversion: " + strconv.Itoa(int(ft)))
	}
	return []byte(strconv.Quote(s)), nil
}

func (ft *FieldType) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("unsupported field type: " + string(data))
	}
	resolved, ok := fieldTypeUnMapping[s]
	if !ok {
		return errors.New("unsupported field type: " + s)
	}
	*ft = resolved
	return nil
}

func FieldTypeStrToType(value string) (FieldType, error) {
	if ft, ok := fieldTypeUnMapping[value]; ok {
		return ft, nil
	}
	return 0, errors.New("unsupported field type: " + value)
}

// integer-rendered kinds
func (ft FieldType) isInt() bool {
	switch ft {
	case FieldTypeInt, FieldTypeLength, FieldTypeSeqNum, FieldTypeNumInGroup:
		return true
	}
	return false
}

// decimal kinds with optional fraction
func (ft FieldType) isFloat() bool {
	switch ft {
	case FieldTypeFloat, FieldTypeAmt, FieldTypePrice, FieldTypePriceOffset,
		FieldTypeQty, FieldTypePercentage:
		return true
	}
	return false
}

// raw byte kinds, length-prefixed by a preceding LENGTH field on the wire
func (ft FieldType) isData() bool {
	return ft == FieldTypeData || ft == FieldTypeXMLData
}
