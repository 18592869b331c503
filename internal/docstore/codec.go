package docstore

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	refKey  = "__ref__"
	timeKey = "__time__"

	// timeLayout は固定桁のUTC表現。文字列比較で時刻順になる。
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// MarshalFields はフィールドをJSONにエンコードする。
// RefとTimeはタグ付きオブジェクトとして表現される。
func MarshalFields(f Fields) ([]byte, error) {
	if f == nil {
		f = Fields{}
	}
	enc, err := encodeMap(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// UnmarshalFields はMarshalFieldsで生成したJSONをフィールドに復元する。
func UnmarshalFields(b []byte) (Fields, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		out[k] = decodeValue(v)
	}
	return out, nil
}

// Normalize はフィールドをストア保存後と同じ表現に変換する。
// 整数はfloat64になり、未知の型はJSON表現に変換される。
func Normalize(f Fields) (Fields, error) {
	b, err := MarshalFields(f)
	if err != nil {
		return nil, err
	}
	return UnmarshalFields(b)
}

// marshalValue は単一の値をJSONにエンコードする。フィルタ値の比較に使う。
func marshalValue(v any) ([]byte, error) {
	enc, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

func encodeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool,
		float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x, nil
	case Ref:
		return map[string]any{refKey: x.Path()}, nil
	case *Ref:
		if x == nil {
			return nil, nil
		}
		return map[string]any{refKey: x.Path()}, nil
	case time.Time:
		return map[string]any{timeKey: x.UTC().Format(timeLayout)}, nil
	case Fields:
		return encodeMap(x)
	case map[string]any:
		return encodeMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			enc, err := encodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("unsupported value %T: %w", v, err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func decodeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 1 {
			if s, ok := x[refKey].(string); ok {
				if ref, err := ParseRef(s); err == nil {
					return ref
				}
			}
			if s, ok := x[timeKey].(string); ok {
				if t, err := time.Parse(timeLayout, s); err == nil {
					return t
				}
			}
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = decodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = decodeValue(e)
		}
		return out
	default:
		return x
	}
}
