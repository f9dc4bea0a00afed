package domain

import "strconv"

type AttributeKind int

const (
	AttributeInvalid AttributeKind = iota
	AttributeInt
	AttributeBool
	AttributeText
)

// AttributeValue is a product attribute parsed according to the data type the
// catalog declares for it. Kind tells which of the value fields is meaningful.
type AttributeValue struct {
	Kind AttributeKind
	Int  int64
	Bool bool
	Text string
}

// ParseAttributeValue interprets raw according to declaredType ("int", "bool"
// or "text"). Unknown types and unparseable values yield AttributeInvalid.
func ParseAttributeValue(raw, declaredType string) AttributeValue {
	switch declaredType {
	case "int":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return AttributeValue{Kind: AttributeInvalid}
		}
		return AttributeValue{Kind: AttributeInt, Int: n}
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return AttributeValue{Kind: AttributeInvalid}
		}
		return AttributeValue{Kind: AttributeBool, Bool: b}
	case "text":
		return AttributeValue{Kind: AttributeText, Text: raw}
	default:
		return AttributeValue{Kind: AttributeInvalid}
	}
}
