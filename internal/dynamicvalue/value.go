// Package dynamicvalue implements the tagged-union value type shared by the
// expression evaluator, the flag model, and the configuration parser (§3).
package dynamicvalue

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies which variant of Value is active.
type Kind int

const (
	Undefined Kind = iota
	Null
	Int
	Double
	Bool
	String
	DateTime
	List
	Map
)

func (k Kind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Int:
		return "int"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case String:
		return "string"
	case DateTime:
		return "datetime"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged union over {int,double,bool,string,datetime,list,map,null,undefined}.
// Exactly one of its fields is meaningful at any time, selected by Kind.
type Value struct {
	kind     Kind
	intVal   int64
	doubleVal float64
	boolVal  bool
	strVal   string
	timeVal  time.Time
	listVal  []Value
	mapVal   map[string]Value
}

func NewInt(v int64) Value          { return Value{kind: Int, intVal: v} }
func NewDouble(v float64) Value     { return Value{kind: Double, doubleVal: v} }
func NewBool(v bool) Value          { return Value{kind: Bool, boolVal: v} }
func NewString(v string) Value      { return Value{kind: String, strVal: v} }
func NewDateTime(v time.Time) Value { return Value{kind: DateTime, timeVal: v} }
func NewList(v []Value) Value       { return Value{kind: List, listVal: v} }
func NewMap(v map[string]Value) Value {
	return Value{kind: Map, mapVal: v}
}
func NewNull() Value      { return Value{kind: Null} }
func NewUndefined() Value { return Value{kind: Undefined} }

func (v Value) Kind() Kind         { return v.kind }
func (v Value) IsUndefined() bool  { return v.kind == Undefined }
func (v Value) IsNull() bool       { return v.kind == Null }
func (v Value) IsNumeric() bool    { return v.kind == Int || v.kind == Double }
func (v Value) IsString() bool     { return v.kind == String }
func (v Value) IsBool() bool       { return v.kind == Bool }

// Int returns the int64 payload; valid only when Kind() == Int.
func (v Value) Int() int64 { return v.intVal }

// Double returns the float64 payload; valid only when Kind() == Double.
func (v Value) Double() float64 { return v.doubleVal }

// Bool returns the bool payload; valid only when Kind() == Bool.
func (v Value) Bool() bool { return v.boolVal }

// Str returns the string payload; valid only when Kind() == String.
func (v Value) Str() string { return v.strVal }

// Time returns the time payload; valid only when Kind() == DateTime.
func (v Value) Time() time.Time { return v.timeVal }

// ListItems returns the list payload; valid only when Kind() == List.
func (v Value) ListItems() []Value { return v.listVal }

// MapItems returns the map payload; valid only when Kind() == Map.
func (v Value) MapItems() map[string]Value { return v.mapVal }

// Number coerces Int and Double to float64; the zero value otherwise.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case Int:
		return float64(v.intVal), true
	case Double:
		return v.doubleVal, true
	default:
		return 0, false
	}
}

// String returns the canonical textual form used by the operator library
// and by flag value formatting (§4.4 "String: int/double formatted canonically").
func (v Value) String() string {
	switch v.kind {
	case Undefined:
		return "undefined"
	case Null:
		return ""
	case Int:
		return strconv.FormatInt(v.intVal, 10)
	case Double:
		return strconv.FormatFloat(v.doubleVal, 'f', -1, 64)
	case Bool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case String:
		return v.strVal
	case DateTime:
		return strconv.FormatInt(v.timeVal.UnixMilli(), 10)
	default:
		return fmt.Sprintf("%v", v.kind)
	}
}

// Equal implements the structural deep-equality invariant of §3: Int and
// Double are interconvertible for numeric comparison, String is never
// implicitly coerced to a number here (that coercion is numeq/numne's job),
// Undefined and Null are distinct, and Undefined equals only Undefined.
func (v Value) Equal(other Value) bool {
	if v.kind == Undefined || other.kind == Undefined {
		return v.kind == Undefined && other.kind == Undefined
	}
	if v.kind == Null || other.kind == Null {
		return v.kind == Null && other.kind == Null
	}
	if v.IsNumeric() && other.IsNumeric() {
		a, _ := v.Number()
		b, _ := other.Number()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Bool:
		return v.boolVal == other.boolVal
	case String:
		return v.strVal == other.strVal
	case DateTime:
		return v.timeVal.Equal(other.timeVal)
	case List:
		if len(v.listVal) != len(other.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(other.listVal[i]) {
				return false
			}
		}
		return true
	case Map:
		if len(v.mapVal) != len(other.mapVal) {
			return false
		}
		for k, a := range v.mapVal {
			b, ok := other.mapVal[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// DeepCopy returns an independent copy. List and Map variants are copied
// element-by-element (Value's fields are unexported, so a generic
// reflection-based copier like copystructure cannot see into them) so
// nested values are never aliased between the configuration snapshot
// owning them and a caller mutating a context map.
func (v Value) DeepCopy() Value {
	switch v.kind {
	case List:
		copied := make([]Value, len(v.listVal))
		for i, item := range v.listVal {
			copied[i] = item.DeepCopy()
		}
		return Value{kind: List, listVal: copied}
	case Map:
		copied := make(map[string]Value, len(v.mapVal))
		for k, item := range v.mapVal {
			copied[k] = item.DeepCopy()
		}
		return Value{kind: Map, mapVal: copied}
	default:
		return v
	}
}
