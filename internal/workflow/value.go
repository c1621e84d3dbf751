package workflow

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the content of a node input.
type ValueKind uint8

const (
	// KindRaw holds any JSON the injector does not interpret, such as node
	// links ("[\"244\", 0]") or lists.
	KindRaw ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindPath
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindPath:
		return "path"
	default:
		return "raw"
	}
}

// Value is one node input.
type Value struct {
	kind ValueKind
	str  string
	i    int64
	f    float64
	raw  json.RawMessage
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Path(p string) Value { return Value{kind: KindPath, str: p} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func Raw(b []byte) Value { return Value{kind: KindRaw, raw: append(json.RawMessage(nil), b...)} }

func (v Value) Kind() ValueKind { return v.kind }

// Text returns the content of a string or path value.
func (v Value) Text() (string, bool) {
	if v.kind == KindString || v.kind == KindPath {
		return v.str, true
	}
	return "", false
}

// Int64 returns the content of an int value.
func (v Value) Int64() (int64, bool) {
	return v.i, v.kind == KindInt
}

// Float64 returns the numeric content of an int or float value.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// RawJSON returns the undecoded content of a raw value.
func (v Value) RawJSON() json.RawMessage {
	if v.kind != KindRaw {
		return nil
	}
	return v.raw
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString, KindPath:
		return json.Marshal(v.str)
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		out := strconv.FormatFloat(v.f, 'f', -1, 64)
		if !strings.ContainsAny(out, ".eE") {
			out += ".0"
		}
		return []byte(out), nil
	default:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		*v = Raw(nil)
		return nil
	}
	switch c := trimmed[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = String(s)
	case c == '-' || (c >= '0' && c <= '9'):
		text := string(trimmed)
		if !strings.ContainsAny(text, ".eE") {
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				*v = Int(i)
				return nil
			}
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		*v = Float(f)
	default:
		*v = Raw(trimmed)
	}
	return nil
}
