package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a number the upstream API may encode as a JSON number, a quoted
// number, null, or something unparsable. Anything that is not a finite number
// decodes to 0. Decoding never fails.
type Numeric float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	*n = Numeric(parseNumber(data))
	return nil
}

// Float64 returns the value as a float64.
func (n Numeric) Float64() float64 {
	return float64(n)
}

// NonNegative returns the value clamped at 0.
func (n Numeric) NonNegative() float64 {
	if n < 0 {
		return 0
	}
	return float64(n)
}

func parseNumber(data []byte) float64 {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return 0
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ActionShape records which wire encoding an action list arrived in.
type ActionShape int

const (
	ShapeAbsent ActionShape = iota
	ShapeList
	ShapeObject
	ShapeScalar
)

func (s ActionShape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeObject:
		return "object"
	case ShapeScalar:
		return "scalar"
	default:
		return "absent"
	}
}

// Action is one labeled outcome value.
type Action struct {
	Type  string  `json:"action_type"`
	Value Numeric `json:"value"`
}

// ActionList is the normalized form of a labeled action field. The upstream
// API sends these as an array of {action_type, value}, a single object, or a
// bare scalar; UnmarshalJSON narrows all of them to Actions before any metric
// logic sees the data.
type ActionList struct {
	Shape   ActionShape
	Actions []Action
	scalar  float64
}

// NewActionList builds a list-shaped ActionList.
func NewActionList(actions ...Action) ActionList {
	return ActionList{Shape: ShapeList, Actions: actions}
}

// ScalarActions builds a scalar-shaped ActionList.
func ScalarActions(v float64) ActionList {
	return ActionList{Shape: ShapeScalar, scalar: v}
}

// UnmarshalJSON implements json.Unmarshaler. Malformed input degrades to an
// absent list and malformed entries are skipped.
func (l *ActionList) UnmarshalJSON(data []byte) error {
	*l = ActionList{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil
		}
		l.Shape = ShapeList
		for _, elem := range elems {
			if a, ok := decodeAction(elem); ok {
				l.Actions = append(l.Actions, a)
			}
		}
	case '{':
		if a, ok := decodeAction(trimmed); ok {
			l.Shape = ShapeObject
			l.Actions = []Action{a}
		}
	default:
		l.Shape = ShapeScalar
		l.scalar = parseNumber(trimmed)
	}
	return nil
}

func decodeAction(data []byte) (Action, bool) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, false
	}
	a.Type = strings.TrimSpace(a.Type)
	return a, true
}

// Has reports whether label is present. A scalar matches any label.
func (l ActionList) Has(label string) bool {
	if l.Shape == ShapeScalar {
		return true
	}
	for _, a := range l.Actions {
		if a.Type == label {
			return true
		}
	}
	return false
}

// Value returns the value recorded for label, or 0 if absent. A scalar is
// treated as the sole action of interest and returned for any label.
func (l ActionList) Value(label string) float64 {
	if l.Shape == ShapeScalar {
		return l.scalar
	}
	for _, a := range l.Actions {
		if a.Type == label {
			return a.Value.Float64()
		}
	}
	return 0
}

// FirstOf returns the value of the first label in priority order that is
// present. Labels are alternative names for the same outcome and are never
// summed.
func (l ActionList) FirstOf(labels ...string) float64 {
	for _, label := range labels {
		if l.Has(label) {
			return l.Value(label)
		}
	}
	return 0
}

// AttributeTo narrows a scalar to one action labeled label. Fields that carry
// several outcome types use it so a bare number counts as a single outcome.
// Other shapes are returned unchanged.
func (l ActionList) AttributeTo(label string) ActionList {
	if l.Shape != ShapeScalar {
		return l
	}
	return ActionList{
		Shape:   ShapeObject,
		Actions: []Action{{Type: label, Value: Numeric(l.scalar)}},
	}
}

// IsEmpty reports whether the list carries no values.
func (l ActionList) IsEmpty() bool {
	return l.Shape == ShapeAbsent || (l.Shape != ShapeScalar && len(l.Actions) == 0)
}

// Outcome label priorities. Upstream reports the same outcome under several
// taxonomies; the first present wins.
var (
	PurchaseLabels     = []string{"purchase", "omni_purchase", "offsite_conversion.fb_pixel_purchase"}
	LeadLabels         = []string{"lead", "onsite_conversion.lead_grouped", "offsite_conversion.fb_pixel_lead"}
	RegistrationLabels = []string{"complete_registration", "offsite_conversion.fb_pixel_complete_registration"}
	AddToCartLabels    = []string{"add_to_cart", "omni_add_to_cart", "offsite_conversion.fb_pixel_add_to_cart"}
)

const (
	LabelPurchase  = "purchase"
	LabelLinkClick = "link_click"
	LabelVideoView = "video_view"
)
