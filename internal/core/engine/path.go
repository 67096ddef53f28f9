package engine

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Resolve extracts the value selected by expr from doc.
//
// An expression that does not start with "$" is a literal and is returned as
// a string value unchanged. Otherwise the remainder is split on "." (empty
// segments are skipped) and each segment descends into an object field,
// optionally followed by a single "[n]" array index, e.g. "$.alert.items[0].name".
//
// Resolve never fails: any step that cannot be taken yields Absent.
func Resolve(doc gjson.Result, expr string) gjson.Result {
	if !strings.HasPrefix(expr, "$") {
		return literal(expr)
	}

	current := doc
	for _, segment := range strings.Split(expr[1:], ".") {
		if segment == "" {
			continue
		}
		next, ok := step(current, segment)
		if !ok {
			return Absent
		}
		current = next
	}
	return current
}

// step applies one path segment to the current value.
func step(current gjson.Result, segment string) (gjson.Result, bool) {
	open := strings.IndexByte(segment, '[')
	end := strings.IndexByte(segment, ']')
	if open < 0 || end < 0 {
		return field(current, segment)
	}

	if key := segment[:open]; key != "" {
		var ok bool
		if current, ok = field(current, key); !ok {
			return Absent, false
		}
	}
	if end < open {
		return Absent, false
	}
	return element(current, segment[open+1:end])
}

// field looks up key in an object. The first occurrence wins when the
// document repeats a key.
func field(current gjson.Result, key string) (gjson.Result, bool) {
	if !current.IsObject() {
		return Absent, false
	}
	found := Absent
	current.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			found = v
			return false
		}
		return true
	})
	return found, found.Exists()
}

// element indexes into an array. Only plain non-negative decimal indices
// are accepted.
func element(current gjson.Result, index string) (gjson.Result, bool) {
	if !current.IsArray() || !isDigits(index) {
		return Absent, false
	}
	i, err := strconv.Atoi(index)
	if err != nil {
		return Absent, false
	}
	items := current.Array()
	if i >= len(items) {
		return Absent, false
	}
	return items[i], true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
