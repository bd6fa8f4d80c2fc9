package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// OptionKind is the variant tag of an OptionValue.
type OptionKind int

const (
	OptionString OptionKind = iota + 1
	OptionList
	OptionNumber
)

var errOptionValue = errors.New("option value must be a string, a list of strings or a number")

// OptionValue is one entry of a product's attribute bag: exactly one of a
// string, a list of strings or a number. Numbers keep their JSON text, so
// 1.50 or 1e2 come back as written.
type OptionValue struct {
	kind OptionKind
	str  string
	list []string
	num  json.Number
}

func StringOption(s string) OptionValue {
	return OptionValue{kind: OptionString, str: s}
}

func ListOption(values ...string) OptionValue {
	list := make([]string, len(values))
	copy(list, values)
	return OptionValue{kind: OptionList, list: list}
}

func NumberOption(n float64) OptionValue {
	return OptionValue{kind: OptionNumber, num: json.Number(strconv.FormatFloat(n, 'f', -1, 64))}
}

func (v OptionValue) Kind() OptionKind { return v.kind }
func (v OptionValue) Str() string      { return v.str }

// Number is the value as a float64; precision beyond it is lost here but
// not in the stored text.
func (v OptionValue) Number() float64 {
	f, _ := v.num.Float64()
	return f
}

// NumberText is the number exactly as it was written.
func (v OptionValue) NumberText() string { return v.num.String() }

func (v OptionValue) List() []string {
	list := make([]string, len(v.list))
	copy(list, v.list)
	return list
}

// Allows reports whether choice is one of the values this option offers.
// Numbers never constrain a choice.
func (v OptionValue) Allows(choice string) bool {
	switch v.kind {
	case OptionString:
		return v.str == choice
	case OptionList:
		for _, s := range v.list {
			if s == choice {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func (v OptionValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case OptionString:
		return json.Marshal(v.str)
	case OptionList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case OptionNumber:
		return []byte(v.num), nil
	default:
		return nil, errOptionValue
	}
}

func (v *OptionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errOptionValue
	}

	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringOption(s)
	case c == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return errOptionValue
		}
		*v = ListOption(list...)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = OptionValue{kind: OptionNumber, num: n}
	default:
		return errOptionValue
	}
	return nil
}

// Options is a product's attribute bag: an ordered mapping of option name to
// value. It is stored and returned verbatim and never checked against a
// fixed schema.
type Options struct {
	keys   []string
	values map[string]OptionValue
}

// Set adds or replaces an option. New names are appended after existing ones.
func (o *Options) Set(name string, value OptionValue) {
	if o.values == nil {
		o.values = make(map[string]OptionValue)
	}
	if _, exists := o.values[name]; !exists {
		o.keys = append(o.keys, name)
	}
	o.values[name] = value
}

func (o Options) Get(name string) (OptionValue, bool) {
	v, ok := o.values[name]
	return v, ok
}

func (o Options) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

func (o Options) Len() int {
	return len(o.keys)
}

// Clone returns a copy whose key order and values are independent of o.
func (o Options) Clone() Options {
	var out Options
	for _, key := range o.keys {
		out.Set(key, o.values[key])
	}
	return out
}

func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := o.values[key].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *Options) UnmarshalJSON(data []byte) error {
	*o = Options{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("options must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value OptionValue
		if err := value.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("option %q: %w", key, err)
		}
		o.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Scan implements sql.Scanner for JSON columns.
func (o *Options) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*o = Options{}
		return nil
	case []byte:
		return o.UnmarshalJSON(v)
	case string:
		return o.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Options", src)
	}
}

// Value implements driver.Valuer.
func (o Options) Value() (driver.Value, error) {
	b, err := o.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// SelectedOptions records the choice a customer made for each option, e.g.
// {"size": "M"}. Together with user and product it identifies a cart line.
type SelectedOptions map[string]string

// Equal reports whether both selections choose the same values. A nil and an
// empty selection are equal.
func (s SelectedOptions) Equal(other SelectedOptions) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (s SelectedOptions) Clone() SelectedOptions {
	out := make(SelectedOptions, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Scan implements sql.Scanner for JSONB columns.
func (s *SelectedOptions) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = SelectedOptions{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SelectedOptions", src)
	}

	out := SelectedOptions{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out == nil {
		out = SelectedOptions{}
	}
	*s = out
	return nil
}

// Value implements driver.Valuer. encoding/json sorts map keys, so equal
// selections always serialize identically.
func (s SelectedOptions) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
