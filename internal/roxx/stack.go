package roxx

import (
	"strconv"

	"github.com/rollout/rox-go/internal/dynamicvalue"
)

// ItemKind tags the payload an Item carries.
type ItemKind int

const (
	ItemUndefined ItemKind = iota
	ItemNull
	ItemInt
	ItemDouble
	ItemBool
	ItemString
	ItemValue // List/Map/DateTime, owned via dynamicvalue.Value
)

// Item is one element of Stack: an evaluation-time operand or result.
type Item struct {
	Kind ItemKind
	I    int64
	F    float64
	B    bool
	S    string
	V    dynamicvalue.Value
}

func (it Item) IsUndefined() bool { return it.Kind == ItemUndefined }
func (it Item) IsNull() bool      { return it.Kind == ItemNull }
func (it Item) IsNumber() bool    { return it.Kind == ItemInt || it.Kind == ItemDouble }
func (it Item) IsBool() bool      { return it.Kind == ItemBool }
func (it Item) IsString() bool    { return it.Kind == ItemString }

// Number coerces Int/Double items to float64; ok is false otherwise.
func (it Item) Number() (float64, bool) {
	switch it.Kind {
	case ItemInt:
		return float64(it.I), true
	case ItemDouble:
		return it.F, true
	default:
		return 0, false
	}
}

// String returns the canonical textual form used by the operator library:
// numbers and booleans are formatted, not reinterpreted as strings.
func (it Item) String() string {
	switch it.Kind {
	case ItemString:
		return it.S
	case ItemInt:
		return strconv.FormatInt(it.I, 10)
	case ItemDouble:
		return strconv.FormatFloat(it.F, 'f', -1, 64)
	case ItemBool:
		if it.B {
			return "true"
		}
		return "false"
	case ItemValue:
		return it.V.String()
	case ItemNull:
		return ""
	default:
		return "undefined"
	}
}

// ToDynamicValue lifts an Item into a dynamicvalue.Value, used by
// extension operators and by inArray's list membership test.
func (it Item) ToDynamicValue() dynamicvalue.Value {
	switch it.Kind {
	case ItemInt:
		return dynamicvalue.NewInt(it.I)
	case ItemDouble:
		return dynamicvalue.NewDouble(it.F)
	case ItemBool:
		return dynamicvalue.NewBool(it.B)
	case ItemString:
		return dynamicvalue.NewString(it.S)
	case ItemNull:
		return dynamicvalue.NewNull()
	case ItemValue:
		return it.V
	default:
		return dynamicvalue.NewUndefined()
	}
}

func itemFromDynamicValue(v dynamicvalue.Value) Item {
	switch v.Kind() {
	case dynamicvalue.Int:
		return Item{Kind: ItemInt, I: v.Int()}
	case dynamicvalue.Double:
		return Item{Kind: ItemDouble, F: v.Double()}
	case dynamicvalue.Bool:
		return Item{Kind: ItemBool, B: v.Bool()}
	case dynamicvalue.String:
		return Item{Kind: ItemString, S: v.Str()}
	case dynamicvalue.Null:
		return Item{Kind: ItemNull}
	case dynamicvalue.Undefined:
		return Item{Kind: ItemUndefined}
	default:
		return Item{Kind: ItemValue, V: v}
	}
}

// Stack is the LIFO evaluation container described in §4.2.
type Stack struct {
	items []Item
}

func NewStack() *Stack { return &Stack{} }

func (s *Stack) PushInt(v int64)                     { s.items = append(s.items, Item{Kind: ItemInt, I: v}) }
func (s *Stack) PushDouble(v float64)                { s.items = append(s.items, Item{Kind: ItemDouble, F: v}) }
func (s *Stack) PushBool(v bool)                     { s.items = append(s.items, Item{Kind: ItemBool, B: v}) }
func (s *Stack) PushString(v string)                 { s.items = append(s.items, Item{Kind: ItemString, S: v}) }
func (s *Stack) PushNull()                            { s.items = append(s.items, Item{Kind: ItemNull}) }
func (s *Stack) PushUndefined()                      { s.items = append(s.items, Item{Kind: ItemUndefined}) }
func (s *Stack) PushValue(v dynamicvalue.Value)      { s.items = append(s.items, itemFromDynamicValue(v)) }
func (s *Stack) PushItem(it Item)                    { s.items = append(s.items, it) }

func (s *Stack) IsEmpty() bool { return len(s.items) == 0 }

func (s *Stack) Peek() (Item, bool) {
	if len(s.items) == 0 {
		return Item{Kind: ItemUndefined}, false
	}
	return s.items[len(s.items)-1], true
}

// Pop removes and returns the top item. Popping an empty stack yields an
// Undefined item and ok=false, never a panic — evaluator faults degrade to
// undefined per §7, they never propagate.
func (s *Stack) Pop() (Item, bool) {
	if len(s.items) == 0 {
		return Item{Kind: ItemUndefined}, false
	}
	n := len(s.items) - 1
	it := s.items[n]
	s.items = s.items[:n]
	return it, true
}

// PopNumber pops and coerces an Int or Double item to float64.
func (s *Stack) PopNumber() (float64, bool) {
	it, ok := s.Pop()
	if !ok {
		return 0, false
	}
	return it.Number()
}

// PopString pops and stringifies any item via its canonical textual form.
func (s *Stack) PopString() (string, bool) {
	it, ok := s.Pop()
	if !ok {
		return "", false
	}
	return it.String(), true
}

// PopBool pops a strictly-boolean item.
func (s *Stack) PopBool() (bool, bool) {
	it, ok := s.Pop()
	if !ok || it.Kind != ItemBool {
		return false, false
	}
	return it.B, true
}
