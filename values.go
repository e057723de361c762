package sheetfeed

import (
	"strconv"
	"strings"
	"time"
)

// GetAsString returns the value as string or defaultValue if not found
func (r *Row) GetAsString(col string, defaultValue string) string {
	v, ok := r.values[col]
	if !ok {
		return defaultValue
	}
	return v
}

// GetAsInt64 returns the value as int64 or defaultValue if not found or not numeric
func (r *Row) GetAsInt64(col string, defaultValue int64) int64 {
	v, ok := r.values[col]
	if !ok {
		return defaultValue
	}

	v = strings.TrimSpace(v)
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int64(f)
	}
	return defaultValue
}

// GetAsFloat64 returns the value as float64 or defaultValue if not found or not numeric
func (r *Row) GetAsFloat64(col string, defaultValue float64) float64 {
	v, ok := r.values[col]
	if !ok {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return f
	}
	return defaultValue
}

// GetAsBool returns the value as bool or defaultValue if not found
func (r *Row) GetAsBool(col string, defaultValue bool) bool {
	v, ok := r.values[col]
	if !ok {
		return defaultValue
	}

	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return true
	case "false", "0", "":
		return false
	}
	return defaultValue
}

// GetAsStrings returns a comma-separated value as []string
func (r *Row) GetAsStrings(col string, defaultValue []string) []string {
	v, ok := r.values[col]
	if !ok {
		return defaultValue
	}
	if v == "" {
		return []string{}
	}
	return strings.Split(v, ",")
}

// GetAsTime returns the value as time.Time or defaultValue if not found
func (r *Row) GetAsTime(col string, defaultValue time.Time) time.Time {
	v, ok := r.values[col]
	if !ok {
		return defaultValue
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"1/2/2006 15:04:05",
		"2006-01-02",
		"1/2/2006",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, strings.TrimSpace(v)); err == nil {
			return t
		}
	}
	return defaultValue
}

// SetInt64 sets an int64 value
func (r *Row) SetInt64(col string, value int64) {
	r.Set(col, strconv.FormatInt(value, 10))
}

// SetFloat64 sets a float64 value
func (r *Row) SetFloat64(col string, value float64) {
	r.Set(col, strconv.FormatFloat(value, 'g', -1, 64))
}

// SetBool sets a bool value
func (r *Row) SetBool(col string, value bool) {
	if value {
		r.Set(col, "TRUE")
		return
	}
	r.Set(col, "FALSE")
}

// SetStrings sets a []string value (stored as comma-separated string)
func (r *Row) SetStrings(col string, value []string) {
	r.Set(col, strings.Join(value, ","))
}

// SetTime sets a time.Time value (stored as ISO 8601 string)
func (r *Row) SetTime(col string, value time.Time) {
	r.Set(col, value.Format(time.RFC3339))
}
