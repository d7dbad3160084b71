// Package csvformat renders arbitrary values as CSV cells for the notice
// downloads. Rows end with "\n" only; strings and objects are always quoted.
package csvformat

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FormatRow formats values as one CSV row terminated by "\n". A nil slice
// means "no row" and returns ok=false; an empty slice is an empty row.
func FormatRow(values []any) (row string, ok bool) {
	if values == nil {
		return "", false
	}

	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = FormatCell(v)
	}
	return strings.Join(cells, ",") + "\n", true
}

// FormatCell formats a single value.
//
//   - nil, empty strings, zero numbers and zero times are empty cells
//   - dates at exactly midnight UTC render as YYYY-MM-DD, other times as
//     ISO-8601 with milliseconds in UTC
//   - finite numbers and booleans are bare
//   - maps and structs are JSON encoded, then escaped and quoted
//   - everything else is converted to a string, escaped and quoted
func FormatCell(value any) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case time.Time:
		return formatTime(v)
	case *time.Time:
		if v == nil {
			return ""
		}
		return formatTime(*v)
	case string:
		if v == "" {
			return ""
		}
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		if isNilPointer(value) {
			return ""
		}
		return quoteNonEmpty(v.String())
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return FormatCell(rv.Elem().Interface())
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() == 0 {
			return ""
		}
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() == 0 {
			return ""
		}
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == 0 || math.IsNaN(f) {
			return ""
		}
		// Infinities are quoted words, not bare numbers.
		if math.IsInf(f, 1) {
			return quote("Infinity")
		}
		if math.IsInf(f, -1) {
			return quote("-Infinity")
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case reflect.String:
		return quoteNonEmpty(rv.String())
	case reflect.Map, reflect.Struct:
		return formatObject(value)
	case reflect.Slice, reflect.Array:
		return formatList(rv)
	}

	return quoteNonEmpty(fmt.Sprint(value))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02T15:04:05.000Z")
}

func formatObject(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return quote(fmt.Sprint(value))
	}
	s := strings.ReplaceAll(string(b), `"`, `""`)
	s = strings.ReplaceAll(s, ":", ": ")
	s = strings.ReplaceAll(s, ",", ", ")
	return `"` + s + `"`
}

// formatList joins list elements with commas before quoting.
func formatList(rv reflect.Value) string {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return ""
	}
	items := make([]string, rv.Len())
	for i := range items {
		items[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return quoteNonEmpty(strings.Join(items, ","))
}

func quoteNonEmpty(s string) string {
	if s == "" {
		return ""
	}
	return quote(s)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
