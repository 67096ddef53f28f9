package engine

import (
	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Absent is returned when a path expression cannot be resolved. It is the zero
// gjson.Result, so Exists reports false. JSON null exists and is never Absent.
var Absent = gjson.Result{}

// literal wraps a constant string so it travels through the engine like any
// other resolved value.
func literal(s string) gjson.Result {
	raw, err := sonic.MarshalString(s)
	if err != nil {
		return gjson.Result{Type: gjson.String, Str: s}
	}
	return gjson.Result{Type: gjson.String, Str: s, Raw: raw}
}

// Stringify returns the text form of a value as used by concat and by
// condition equality. Strings yield their content, numbers their JSON text,
// booleans and null their JSON keywords, containers their compact JSON, and
// Absent the empty string.
func Stringify(v gjson.Result) string {
	if !v.Exists() {
		return ""
	}
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return "null"
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		if v.Raw != "" {
			return v.Raw
		}
		return v.String()
	default:
		return string(pretty.Ugly([]byte(v.Raw)))
	}
}

// rawJSON returns the JSON encoding of a resolved value.
func rawJSON(v gjson.Result) []byte {
	if v.Raw != "" {
		return []byte(v.Raw)
	}
	if v.Type == gjson.String {
		raw, _ := sonic.Marshal(v.Str)
		return raw
	}
	return []byte(Stringify(v))
}

// describe names the JSON type of a value for error messages.
func describe(v gjson.Result) string {
	if !v.Exists() {
		return "nothing"
	}
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	}
	if v.IsArray() {
		return "array"
	}
	return "object"
}
