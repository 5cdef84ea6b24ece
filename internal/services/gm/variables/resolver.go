// Package variables resolves {{$Name}} placeholders in instruction and
// script templates.
package variables

import (
	"fmt"
	"maps"
	"regexp"
)

// Context is the shared key/value scratch space visible to every stage of
// one pipeline run.
type Context map[string]any

// Clone returns a shallow copy of c.
func (c Context) Clone() Context {
	return maps.Clone(c)
}

// String returns the string form of the value stored under key.
func (c Context) String(key string) string {
	value, ok := c[key]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

var placeholder = regexp.MustCompile(`\{\{\$(\w+)\}\}`)

// Resolve replaces every {{$Name}} whose key is present in vars with the
// string form of its value. Unknown keys and malformed placeholders are left
// byte-for-byte intact. Substituted values are not re-scanned.
func Resolve(template string, vars Context) string {
	if template == "" || len(vars) == 0 {
		return template
	}
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		value, ok := vars[key]
		if !ok {
			return match
		}
		if value == nil {
			return ""
		}
		return fmt.Sprint(value)
	})
}

// ResolveAll resolves each template in order.
func ResolveAll(templates []string, vars Context) []string {
	resolved := make([]string, len(templates))
	for i, template := range templates {
		resolved[i] = Resolve(template, vars)
	}
	return resolved
}
