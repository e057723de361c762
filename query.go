package sheetfeed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Condition represents a single structured row condition
type Condition struct {
	Column   string      // column name
	Operator string      // ==, !=, >, >=, <, <=, in, between
	Value    interface{} // []interface{} for in, [2]interface{} for between
}

// RowQuery selects and orders the rows returned by Worksheet.Rows
type RowQuery struct {
	Query       string      // Free-text structured query, ANDed with Conditions
	Conditions  []Condition // ANDed together
	OrderBy     string      // Column to sort by
	Reverse     bool        // Reverse the sort order
	IfNoneMatch string      // ETag of a previous read; unchanged feeds yield a not-modified cursor
}

var sqOperators = map[string]string{
	"==": "=",
	"!=": "<>",
	">":  ">",
	">=": ">=",
	"<":  "<",
	"<=": "<=",
}

// values renders the query parameters understood by the list feed.
func (q RowQuery) values() (url.Values, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	params := url.Values{}
	clauses := make([]string, 0, len(q.Conditions)+1)
	if q.Query != "" {
		clauses = append(clauses, q.Query)
	}
	for _, cond := range q.Conditions {
		clauses = append(clauses, renderCondition(cond))
	}
	if len(clauses) == 1 {
		params.Set("sq", clauses[0])
	} else if len(clauses) > 1 {
		params.Set("sq", "("+strings.Join(clauses, ") and (")+")")
	}

	if q.OrderBy != "" {
		params.Set("orderby", "column:"+q.OrderBy)
	}
	if q.Reverse {
		params.Set("reverse", "true")
	}
	return params, nil
}

func renderCondition(cond Condition) string {
	switch cond.Operator {
	case "in":
		list := cond.Value.([]interface{})
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = cond.Column + " = " + renderValue(v)
		}
		return strings.Join(parts, " or ")
	case "between":
		lo, hi := bounds(cond.Value)
		return fmt.Sprintf("%s >= %s and %s <= %s", cond.Column, renderValue(lo), cond.Column, renderValue(hi))
	default:
		return cond.Column + " " + sqOperators[cond.Operator] + " " + renderValue(cond.Value)
	}
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return `""`
	case string:
		return strconv.Quote(val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%g", val)
	default:
		return strconv.Quote(fmt.Sprintf("%v", val))
	}
}

func bounds(v interface{}) (interface{}, interface{}) {
	switch b := v.(type) {
	case [2]interface{}:
		return b[0], b[1]
	case []interface{}:
		return b[0], b[1]
	}
	return nil, nil
}

// ValidateQuery validates query structure
func ValidateQuery(query RowQuery) error {
	for i, cond := range query.Conditions {
		if cond.Column == "" {
			return fmt.Errorf("empty column name in condition %d", i)
		}

		switch cond.Operator {
		case "==", "!=", ">", ">=", "<", "<=":
		case "in":
			list, ok := cond.Value.([]interface{})
			if !ok || len(list) == 0 {
				return fmt.Errorf("operator 'in' requires a non-empty []interface{} value in condition %d", i)
			}
		case "between":
			valid := false
			switch v := cond.Value.(type) {
			case [2]interface{}:
				valid = true
			case []interface{}:
				valid = len(v) == 2
			}
			if !valid {
				return fmt.Errorf("operator 'between' requires [2]interface{} or []interface{} with 2 elements in condition %d", i)
			}
		default:
			return fmt.Errorf("invalid operator '%s' in condition %d", cond.Operator, i)
		}
	}

	if strings.ContainsAny(query.OrderBy, " \t") {
		return fmt.Errorf("invalid order column %q", query.OrderBy)
	}
	return nil
}
