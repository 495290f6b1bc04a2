package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"taskify/internal/query"
)

// The memory backend evaluates filters against the JSON form of each
// document, covering the operator subset the service itself issues plus what
// tests and dev setups need: equality (with contains semantics on array
// fields), $in, $ne, $exists, and the ordered comparisons.

func toDoc(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDoc(doc map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func matchesFilter(doc map[string]interface{}, filter map[string]interface{}) bool {
	for field, cond := range filter {
		if !matchesCond(doc[field], cond) {
			return false
		}
	}
	return true
}

func matchesCond(val, cond interface{}) bool {
	if ops, ok := cond.(map[string]interface{}); ok && hasOperator(ops) {
		for op, arg := range ops {
			if !applyOperator(val, op, arg) {
				return false
			}
		}
		return true
	}
	return valueEquals(val, cond)
}

func hasOperator(m map[string]interface{}) bool {
	for k := range m {
		if len(k) > 0 && k[0] == '$' {
			return true
		}
	}
	return false
}

func applyOperator(val interface{}, op string, arg interface{}) bool {
	switch op {
	case "$in":
		args, ok := arg.([]interface{})
		if !ok {
			return false
		}
		for _, candidate := range args {
			if valueEquals(val, candidate) {
				return true
			}
		}
		return false
	case "$ne":
		return !valueEquals(val, arg)
	case "$exists":
		want, _ := arg.(bool)
		return (val != nil) == want
	case "$gt":
		c, ok := compareValues(val, arg)
		return ok && c > 0
	case "$gte":
		c, ok := compareValues(val, arg)
		return ok && c >= 0
	case "$lt":
		c, ok := compareValues(val, arg)
		return ok && c < 0
	case "$lte":
		c, ok := compareValues(val, arg)
		return ok && c <= 0
	default:
		return false
	}
}

// valueEquals uses contains semantics when the document value is an array,
// matching how the filter behaves against pendingTasks in the mongo backend.
func valueEquals(val, want interface{}) bool {
	if arr, ok := val.([]interface{}); ok {
		if _, wantArr := want.([]interface{}); !wantArr {
			for _, item := range arr {
				if valueEquals(item, want) {
					return true
				}
			}
			return false
		}
	}
	c, ok := compareValues(val, want)
	if ok {
		return c == 0
	}
	return fmt.Sprintf("%v", val) == fmt.Sprintf("%v", want)
}

func compareValues(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if at, aok := parseRFC3339(av); aok {
			if bt, bok := parseRFC3339(bv); bok {
				switch {
				case at.Before(bt):
					return -1, true
				case at.After(bt):
					return 1, true
				default:
					return 0, true
				}
			}
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case nil:
		if b == nil {
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseRFC3339(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func sortDocs(docs []map[string]interface{}, fields []query.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			c, ok := compareValues(docs[i][f.Field], docs[j][f.Field])
			if !ok || c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// projectDoc applies mongo projection semantics: any 1-valued field (other
// than _id) switches to inclusive mode, where _id stays unless excluded.
func projectDoc(doc map[string]interface{}, sel map[string]int) map[string]interface{} {
	if len(sel) == 0 {
		return doc
	}

	inclusive := false
	for field, mode := range sel {
		if field != "_id" && mode == 1 {
			inclusive = true
			break
		}
	}

	out := make(map[string]interface{}, len(doc))
	if inclusive {
		for field, mode := range sel {
			if mode != 1 {
				continue
			}
			if v, ok := doc[field]; ok {
				out[field] = v
			}
		}
		if mode, listed := sel["_id"]; !listed || mode == 1 {
			if v, ok := doc["_id"]; ok {
				out["_id"] = v
			}
		}
		return out
	}

	for field, v := range doc {
		if mode, listed := sel[field]; listed && mode == 0 {
			continue
		}
		out[field] = v
	}
	return out
}

func applyWindow(docs []map[string]interface{}, skip, limit int64) []map[string]interface{} {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}
