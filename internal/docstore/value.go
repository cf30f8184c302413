package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Fields holds a document's data. Supported value types are nil, string,
// bool, int64, float64, time.Time and ServerTimestamp; Normalize converts
// the other Go integer and float kinds.
type Fields map[string]any

type serverTimestamp struct{}

func (serverTimestamp) String() string { return "ServerTimestamp" }

// ServerTimestamp is replaced by the store's commit time when a write is applied.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Clone returns a shallow copy; values are immutable so that is enough.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Normalize validates every value and rewrites it into its canonical type.
func (f Fields) Normalize() (Fields, error) {
	out := make(Fields, len(f))
	for k, v := range f {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidArgument)
		}
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Resolve replaces ServerTimestamp sentinels with commitTime.
func (f Fields) Resolve(commitTime time.Time) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if IsServerTimestamp(v) {
			v = commitTime
		}
		out[k] = v
	}
	return out
}

// Merge applies patch on top of f and returns the result.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	if out == nil {
		out = Fields{}
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, serverTimestamp:
		return x, nil
	case time.Time:
		return x.UTC(), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	}
	return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, v)
}

// ------- ordering -------

// typeRank orders values of different types: null < bool < number < timestamp < string.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	}
	return 5
}

// CompareValues returns -1, 0 or 1.
func CompareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int64, float64:
		return cmpFloat(toFloat(a), toFloat(b))
	case time.Time:
		y := b.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ------- JSON codec -------

// Values travel as {"type": ..., "value": ...} so timestamps and the
// ServerTimestamp sentinel survive a round trip through JSON.

type wireValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

const (
	typeNull            = "null"
	typeString          = "string"
	typeBool            = "bool"
	typeInteger         = "integer"
	typeDouble          = "double"
	typeTimestamp       = "timestamp"
	typeServerTimestamp = "serverTimestamp"
)

func (f Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]wireValue, len(f))
	for k, v := range f {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		wv, err := encodeValue(nv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = wv
	}
	return json.Marshal(out)
}

func (f *Fields) UnmarshalJSON(b []byte) error {
	var raw map[string]wireValue
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = nil
		return nil
	}
	out := make(Fields, len(raw))
	for k, wv := range raw {
		v, err := decodeValue(wv)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	*f = out
	return nil
}

func encodeValue(v any) (wireValue, error) {
	var (
		typ string
		val any
	)
	switch x := v.(type) {
	case nil:
		return wireValue{Type: typeNull}, nil
	case serverTimestamp:
		return wireValue{Type: typeServerTimestamp}, nil
	case string:
		typ, val = typeString, x
	case bool:
		typ, val = typeBool, x
	case int64:
		typ, val = typeInteger, x
	case float64:
		typ, val = typeDouble, x
	case time.Time:
		typ, val = typeTimestamp, x.UTC().Format(time.RFC3339Nano)
	default:
		return wireValue{}, fmt.Errorf("%w: unsupported value type %T", ErrInvalidArgument, v)
	}
	b, err := json.Marshal(val)
	if err != nil {
		return wireValue{}, err
	}
	return wireValue{Type: typ, Value: b}, nil
}

func decodeValue(wv wireValue) (any, error) {
	switch wv.Type {
	case typeNull:
		return nil, nil
	case typeServerTimestamp:
		return ServerTimestamp, nil
	case typeString:
		var s string
		err := json.Unmarshal(wv.Value, &s)
		return s, err
	case typeBool:
		var b bool
		err := json.Unmarshal(wv.Value, &b)
		return b, err
	case typeInteger:
		var n int64
		err := json.Unmarshal(wv.Value, &n)
		return n, err
	case typeDouble:
		var n float64
		err := json.Unmarshal(wv.Value, &n)
		return n, err
	case typeTimestamp:
		var s string
		if err := json.Unmarshal(wv.Value, &s); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
		return ts.UTC(), nil
	}
	return nil, fmt.Errorf("%w: unknown value type %q", ErrInvalidArgument, wv.Type)
}
