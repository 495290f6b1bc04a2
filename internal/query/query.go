package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"taskify/internal/errs"
)

// SortField orders results on one document field.
type SortField struct {
	Field string
	Desc  bool
}

// Query is the pass-through read contract: an arbitrary filter document, an
// ordered field sort, a field projection, and window/count controls. The
// service does not interpret the filter; it hands it to the store backend.
type Query struct {
	Filter map[string]interface{}
	Sort   []SortField
	Select map[string]int
	Skip   int64
	Limit  int64
	Count  bool
}

// Params holds the raw query-string values before decoding.
type Params struct {
	Where  string
	Sort   string
	Select string
	Skip   string
	Limit  string
	Count  string
}

// Parse decodes raw query parameters into a Query. Any malformed parameter
// is a BadInput error naming the parameter.
func Parse(p Params) (Query, error) {
	q := Query{}

	if p.Where != "" {
		if err := json.Unmarshal([]byte(p.Where), &q.Filter); err != nil {
			return q, errs.Wrap(errs.BadInput, errs.CodeInvalidQuery, "where is not a valid JSON object", err)
		}
	}

	if p.Sort != "" {
		sort, err := parseSort(p.Sort)
		if err != nil {
			return q, err
		}
		q.Sort = sort
	}

	if p.Select != "" {
		if err := json.Unmarshal([]byte(p.Select), &q.Select); err != nil {
			return q, errs.Wrap(errs.BadInput, errs.CodeInvalidQuery, "select is not a valid JSON object", err)
		}
	}

	if p.Skip != "" {
		n, err := strconv.ParseInt(p.Skip, 10, 64)
		if err != nil || n < 0 {
			return q, errs.New(errs.BadInput, errs.CodeInvalidQuery, "skip must be a non-negative integer")
		}
		q.Skip = n
	}

	if p.Limit != "" {
		n, err := strconv.ParseInt(p.Limit, 10, 64)
		if err != nil || n < 0 {
			return q, errs.New(errs.BadInput, errs.CodeInvalidQuery, "limit must be a non-negative integer")
		}
		q.Limit = n
	}

	if p.Count != "" {
		b, err := strconv.ParseBool(p.Count)
		if err != nil {
			return q, errs.New(errs.BadInput, errs.CodeInvalidQuery, "count must be a boolean")
		}
		q.Count = b
	}

	return q, nil
}

// parseSort decodes a JSON object while keeping its key order, since sort
// precedence follows the order the client wrote the fields in.
func parseSort(raw string) ([]SortField, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))

	tok, err := dec.Token()
	if err != nil {
		return nil, errs.Wrap(errs.BadInput, errs.CodeInvalidQuery, "sort is not a valid JSON object", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errs.New(errs.BadInput, errs.CodeInvalidQuery, "sort is not a valid JSON object")
	}

	var fields []SortField
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errs.Wrap(errs.BadInput, errs.CodeInvalidQuery, "sort is not a valid JSON object", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errs.New(errs.BadInput, errs.CodeInvalidQuery, "sort is not a valid JSON object")
		}

		var dir float64
		if err := dec.Decode(&dir); err != nil {
			return nil, errs.New(errs.BadInput, errs.CodeInvalidQuery,
				fmt.Sprintf("sort direction for %q must be 1 or -1", key))
		}
		if dir != 1 && dir != -1 {
			return nil, errs.New(errs.BadInput, errs.CodeInvalidQuery,
				fmt.Sprintf("sort direction for %q must be 1 or -1", key))
		}

		fields = append(fields, SortField{Field: key, Desc: dir == -1})
	}

	if _, err := dec.Token(); err != nil {
		return nil, errs.Wrap(errs.BadInput, errs.CodeInvalidQuery, "sort is not a valid JSON object", err)
	}

	return fields, nil
}
