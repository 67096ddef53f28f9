package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// FunctionConcat is the only function rules may call.
const FunctionConcat = "concat"

// OmitReason explains why a field is missing from an output document.
type OmitReason string

const (
	OmitUnresolved      OmitReason = "unresolved"
	OmitUnknownFunction OmitReason = "unknown_function"
	OmitNoMatch         OmitReason = "no_match"
	OmitUnrecognized    OmitReason = "unrecognized"
)

// Rule computes at most one output field. The set of rule kinds is closed:
// DirectMapping, FunctionCall, ConditionalChain and Unrecognized.
type Rule interface {
	// Kind names the rule shape for logs and diagnostics.
	Kind() string
	apply(doc gjson.Result) (json.RawMessage, *Omission)
}

// DirectMapping copies the value selected by Expr, or Expr itself when it
// is a literal.
type DirectMapping struct {
	Expr string
}

func (DirectMapping) Kind() string { return "direct" }

func (r DirectMapping) apply(doc gjson.Result) (json.RawMessage, *Omission) {
	v := Resolve(doc, r.Expr)
	if !v.Exists() {
		return nil, &Omission{Reason: OmitUnresolved, Detail: r.Expr}
	}
	return rawJSON(v), nil
}

// FunctionCall invokes a named function over resolved arguments.
type FunctionCall struct {
	Name string
	Args []string
}

func (FunctionCall) Kind() string { return "function" }

func (r FunctionCall) apply(doc gjson.Result) (json.RawMessage, *Omission) {
	switch r.Name {
	case FunctionConcat:
		var sb strings.Builder
		for _, arg := range r.Args {
			v := Resolve(doc, arg)
			if !v.Exists() {
				continue
			}
			sb.WriteString(Stringify(v))
		}
		raw, err := sonic.Marshal(sb.String())
		if err != nil {
			return nil, &Omission{Reason: OmitUnresolved, Detail: err.Error()}
		}
		return raw, nil
	default:
		return nil, &Omission{Reason: OmitUnknownFunction, Detail: r.Name}
	}
}

// Branch pairs a condition with the literal it yields.
type Branch struct {
	When  Condition
	Value json.RawMessage
}

// ConditionalChain yields the value of the first branch whose condition holds.
type ConditionalChain struct {
	Branches []Branch
}

func (ConditionalChain) Kind() string { return "conditional" }

func (r ConditionalChain) apply(doc gjson.Result) (json.RawMessage, *Omission) {
	for _, b := range r.Branches {
		if b.When.Eval(doc) {
			return b.Value, nil
		}
	}
	return nil, &Omission{Reason: OmitNoMatch}
}

// Unrecognized holds a rule of any other shape. It never produces a value.
type Unrecognized struct {
	Raw string
}

func (Unrecognized) Kind() string { return "unrecognized" }

func (r Unrecognized) apply(gjson.Result) (json.RawMessage, *Omission) {
	return nil, &Omission{Reason: OmitUnrecognized, Detail: r.Raw}
}

// FieldRule binds an output field to its rule.
type FieldRule struct {
	Field string
	Rule  Rule
}

// RuleSet is the ordered list of field rules of one endpoint. Fields are
// computed independently; order only affects diagnostics.
type RuleSet []FieldRule

// Omission records a field that was left out of the output.
type Omission struct {
	Field  string
	Reason OmitReason
	Detail string
}

func (o Omission) String() string {
	if o.Detail == "" {
		return fmt.Sprintf("%s: %s", o.Field, o.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", o.Field, o.Reason, o.Detail)
}

// Document is an output document: field name to encoded JSON value.
type Document map[string]json.RawMessage

// Marshal encodes the document with sorted keys.
func (d Document) Marshal() ([]byte, error) {
	return sonic.ConfigStd.Marshal(map[string]json.RawMessage(d))
}

// Result is the outcome of applying a rule set.
type Result struct {
	Document Document
	Omitted  []Omission
}

// Apply evaluates every rule of rules against doc and returns a fresh output
// document. doc is only read.
//
// The only failure is a document that is not a JSON object; every per-field
// problem omits that field and is reported in Result.Omitted.
func Apply(doc gjson.Result, rules RuleSet) (*Result, error) {
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrTransformation, describe(doc))
	}

	res := &Result{Document: make(Document, len(rules))}
	for _, fr := range rules {
		if fr.Rule == nil {
			res.Omitted = append(res.Omitted, Omission{Field: fr.Field, Reason: OmitUnrecognized})
			continue
		}
		value, omit := fr.Rule.apply(doc)
		if omit != nil {
			omit.Field = fr.Field
			res.Omitted = append(res.Omitted, *omit)
			continue
		}
		res.Document[fr.Field] = value
	}
	return res, nil
}
