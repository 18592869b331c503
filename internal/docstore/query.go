package docstore

import (
	"bytes"
	"cmp"
	"slices"
	"strings"
	"time"
)

// applyQuery はプロセス内でフィルタ・ソート・件数制限を適用する。
// MemoryStoreとRedisStoreで共用し、PostgresStoreのSQLと同じ順序規則に従う。
func applyQuery(docs []*Document, q Query) ([]*Document, error) {
	filtered := make([]*Document, 0, len(docs))
	for _, d := range docs {
		ok, err := matchFilters(d, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, d)
		}
	}

	slices.SortStableFunc(filtered, func(a, b *Document) int {
		for _, o := range q.OrderBy {
			c := compareValues(a.Fields[o.Field], b.Fields[o.Field])
			if o.Direction == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	})

	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}
	return filtered, nil
}

func matchFilters(d *Document, filters []Filter) (bool, error) {
	for _, f := range filters {
		v, ok := d.Fields[f.Field]
		if !ok {
			return false, nil
		}
		want, err := marshalValue(f.Value)
		if err != nil {
			return false, err
		}
		got, err := marshalValue(v)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(want, got) {
			return false, nil
		}
	}
	return true, nil
}

// typeRank はJSONBの型順序（null < string < number < boolean < array < object）に合わせる。
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case float64, float32, int, int64, int32:
		return 2
	case bool:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch x := a.(type) {
	case nil:
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case []any:
		y := b.([]any)
		if len(x) != len(y) {
			return cmp.Compare(len(x), len(y))
		}
		for i := range x {
			if c := compareValues(x[i], y[i]); c != 0 {
				return c
			}
		}
		return 0
	}

	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	}
	return compareObjects(a, b)
}

// compareObjects はRef < Time < その他のオブジェクトの順で比較する。
func compareObjects(a, b any) int {
	objRank := func(v any) int {
		switch v.(type) {
		case Ref:
			return 0
		case time.Time:
			return 1
		default:
			return 2
		}
	}
	ra, rb := objRank(a), objRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case Ref:
		return strings.Compare(x.Path(), b.(Ref).Path())
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
