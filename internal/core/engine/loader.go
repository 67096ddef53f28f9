package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of an endpoint configuration file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Breaker defaults used when a circuit_breaker block omits a setting.
const (
	defaultBreakerThreshold = 5
	defaultBreakerOpen      = 30 * time.Second
)

// FormatOf picks the format from a file extension; anything that is not
// YAML is read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and compiles the endpoint configuration at path.
func Load(path string) (*Engine, []Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read %s: %w", ErrConfiguration, path, err)
	}
	return Parse(path, data, FormatOf(path))
}

// Parse compiles an endpoint configuration document. Every rule and
// condition is compiled here so requests never re-inspect raw configuration.
func Parse(source string, data []byte, format Format) (*Engine, []Warning, error) {
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, source, err)
		}
		data = converted
	}

	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("%w: %s is not valid JSON", ErrConfiguration, source)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, nil, fmt.Errorf("%w: %s: top level must be an object, got %s", ErrConfiguration, source, describe(root))
	}

	c := &compiler{}
	endpoints := root.Get(keyEndpoints)
	if !endpoints.Exists() {
		c.warn("", "", "no endpoints configured")
		e, err := NewEngine(source, nil)
		return e, c.warnings, err
	}
	if !endpoints.IsObject() {
		return nil, nil, fmt.Errorf("%w: %s: %q must be an object, got %s", ErrConfiguration, source, keyEndpoints, describe(endpoints))
	}

	var (
		compiled []*Endpoint
		index    = make(map[string]int)
		failure  error
	)
	endpoints.ForEach(func(key, value gjson.Result) bool {
		ep, err := c.endpoint(key.Str, value)
		if err != nil {
			failure = fmt.Errorf("%w: %s: endpoint %q: %w", ErrConfiguration, source, key.Str, err)
			return false
		}
		if i, dup := index[ep.ID]; dup {
			c.warn(ep.ID, "", "endpoint defined more than once, last definition wins")
			compiled[i] = ep
			return true
		}
		index[ep.ID] = len(compiled)
		compiled = append(compiled, ep)
		return true
	})
	if failure != nil {
		return nil, nil, failure
	}

	e, err := NewEngine(source, compiled)
	if err != nil {
		return nil, nil, err
	}
	return e, c.warnings, nil
}

// yamlToJSON re-encodes a YAML document so both formats compile through the
// same path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	out, err := sonic.ConfigStd.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML to JSON: %w", err)
	}
	return out, nil
}

type compiler struct {
	warnings []Warning
}

func (c *compiler) warn(endpoint, field, format string, args ...interface{}) {
	c.warnings = append(c.warnings, Warning{
		Endpoint: endpoint,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *compiler) endpoint(id string, v gjson.Result) (*Endpoint, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("expected an object, got %s", describe(v))
	}

	ep := &Endpoint{
		ID:      id,
		Headers: make(map[string]string),
		Timeout: DefaultTimeout,
	}

	if target := v.Get(keyTargetURL); target.Exists() && target.Type != gjson.Null {
		ep.TargetURL = Stringify(target)
	}
	if ep.TargetURL == "" {
		c.warn(id, "", "%s is not configured, requests will fail", keyTargetURL)
	}

	if headers := v.Get(keyHeaders); headers.Exists() && headers.Type != gjson.Null {
		if !headers.IsObject() {
			return nil, fmt.Errorf("%s must be an object, got %s", keyHeaders, describe(headers))
		}
		headers.ForEach(func(name, value gjson.Result) bool {
			ep.Headers[name.Str] = Stringify(value)
			return true
		})
	}

	if timeout := v.Get(keyTimeout); timeout.Exists() && timeout.Type != gjson.Null {
		if timeout.Type != gjson.Number || timeout.Num <= 0 {
			return nil, fmt.Errorf("%s must be a positive number of seconds, got %s", keyTimeout, timeout.Raw)
		}
		ep.Timeout = time.Duration(timeout.Num * float64(time.Second))
	}

	if breaker := v.Get(keyBreaker); breaker.Exists() && breaker.Type != gjson.Null {
		cfg, err := compileBreaker(breaker)
		if err != nil {
			return nil, err
		}
		ep.Breaker = cfg
	}

	if rules := v.Get(keyTransformation); rules.Exists() && rules.Type != gjson.Null {
		if !rules.IsObject() {
			return nil, fmt.Errorf("%s must be an object, got %s", keyTransformation, describe(rules))
		}
		ep.Rules = c.ruleSet(id, rules)
	}

	return ep, nil
}

func compileBreaker(v gjson.Result) (*BreakerConfig, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("%s must be an object, got %s", keyBreaker, describe(v))
	}
	cfg := &BreakerConfig{
		FailureThreshold: defaultBreakerThreshold,
		OpenTimeout:      defaultBreakerOpen,
	}
	if n := v.Get("failure_threshold"); n.Exists() {
		if n.Type != gjson.Number || n.Num < 1 {
			return nil, fmt.Errorf("%s.failure_threshold must be at least 1, got %s", keyBreaker, n.Raw)
		}
		cfg.FailureThreshold = uint32(n.Num)
	}
	if s := v.Get("open_seconds"); s.Exists() {
		if s.Type != gjson.Number || s.Num <= 0 {
			return nil, fmt.Errorf("%s.open_seconds must be positive, got %s", keyBreaker, s.Raw)
		}
		cfg.OpenTimeout = time.Duration(s.Num * float64(time.Second))
	}
	return cfg, nil
}

// ruleSet compiles the transformation object. A field listed twice keeps
// its first position and its last rule.
func (c *compiler) ruleSet(endpoint string, v gjson.Result) RuleSet {
	var (
		rules RuleSet
		index = make(map[string]int)
	)
	v.ForEach(func(key, value gjson.Result) bool {
		rule := c.rule(endpoint, key.Str, value)
		if i, dup := index[key.Str]; dup {
			rules[i].Rule = rule
			return true
		}
		index[key.Str] = len(rules)
		rules = append(rules, FieldRule{Field: key.Str, Rule: rule})
		return true
	})
	return rules
}

// rule decides the rule shape once:
//
//	"..."                                 DirectMapping
//	{"function": name, "fields": [...]}   FunctionCall
//	[{"condition": c, "value": v}, ...]   ConditionalChain
//	anything else                         Unrecognized
func (c *compiler) rule(endpoint, field string, v gjson.Result) Rule {
	switch {
	case v.Type == gjson.String:
		return DirectMapping{Expr: v.Str}

	case v.IsObject():
		fn := v.Get(keyFunction)
		if !fn.Exists() {
			c.warn(endpoint, field, "object rule without %q is ignored", keyFunction)
			return Unrecognized{Raw: v.Raw}
		}
		call := FunctionCall{Name: Stringify(fn)}
		if call.Name != FunctionConcat {
			c.warn(endpoint, field, "unknown function %q, field will be omitted", call.Name)
		}
		fields := v.Get(keyFields)
		switch {
		case fields.IsArray():
			for _, arg := range fields.Array() {
				call.Args = append(call.Args, Stringify(arg))
			}
		case fields.Exists():
			c.warn(endpoint, field, "%q must be an array, got %s", keyFields, describe(fields))
		}
		return call

	case v.IsArray():
		var chain ConditionalChain
		for i, item := range v.Array() {
			cond, value := item.Get(keyCondition), item.Get(keyValue)
			if !item.IsObject() || !cond.Exists() || !value.Exists() {
				c.warn(endpoint, field, "branch %d needs %q and %q, skipped", i, keyCondition, keyValue)
				continue
			}
			when := Condition{Source: cond.Raw}
			if cond.Type == gjson.String {
				when = ParseCondition(cond.Str)
			}
			if !when.Valid {
				c.warn(endpoint, field, "branch %d condition %s has no ==, it never matches", i, cond.Raw)
			}
			chain.Branches = append(chain.Branches, Branch{
				When:  when,
				Value: json.RawMessage(value.Raw),
			})
		}
		return chain

	default:
		c.warn(endpoint, field, "unsupported rule %s is ignored", v.Raw)
		return Unrecognized{Raw: v.Raw}
	}
}
