package security

import (
	"regexp"
)

// Rule 定义了敏感信息检测规则
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Scanner redacts secrets and personal data from payload text before it is
// written to logs. It never touches the payloads that are forwarded.
type Scanner struct {
	rules []Rule
}

// NewScanner 创建一个新的 Scanner 实例，内置所有检测规则
// 按照优先级顺序：先匹配更具体的模式
func NewScanner() *Scanner {
	s := &Scanner{}

	s.mustAdd("Private Key", `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?(?:-----END [A-Z ]*PRIVATE KEY-----|$)`, "[PRIVATE_KEY_REDACTED]")
	s.mustAdd("Bearer Token", `(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*`, "Bearer [TOKEN_REDACTED]")
	s.mustAdd("AWS Access Key", `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`, "[AWS_AK_REDACTED]")
	s.mustAdd("API Key", `\bsk-(?:proj-|ant-)?[a-zA-Z0-9_\-]{20,}\b`, "[API_KEY_REDACTED]")
	s.mustAdd("GitHub Token", `\b(?:ghp|gho|ghu|ghs|ghr)_[a-zA-Z0-9]{36}\b`, "[GITHUB_TOKEN_REDACTED]")
	s.mustAdd("Slack Token", `\bxox[abprs]-[A-Za-z0-9-]{10,}\b`, "[SLACK_TOKEN_REDACTED]")
	s.mustAdd("Email", `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[EMAIL_REDACTED]")
	// E.164 numbers as used by SMS and voice gateways, e.g. +12345678900
	s.mustAdd("Phone", `\+[1-9]\d{7,14}\b`, "[PHONE_REDACTED]")

	return s
}

func (s *Scanner) mustAdd(name, pattern, replacement string) {
	s.rules = append(s.rules, Rule{
		Name:        name,
		Pattern:     regexp.MustCompile(pattern),
		Replacement: replacement,
	})
}

// Sanitize applies every rule in order and returns the redacted text.
func (s *Scanner) Sanitize(input string) string {
	result := input
	for _, rule := range s.rules {
		result = rule.Pattern.ReplaceAllString(result, rule.Replacement)
	}
	return result
}

// AddRule 动态添加自定义规则
func (s *Scanner) AddRule(name string, pattern string, replacement string) error {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.rules = append(s.rules, Rule{
		Name:        name,
		Pattern:     compiled,
		Replacement: replacement,
	})
	return nil
}

// Rules 返回当前所有规则的副本
func (s *Scanner) Rules() []Rule {
	rulesCopy := make([]Rule, len(s.rules))
	copy(rulesCopy, s.rules)
	return rulesCopy
}
