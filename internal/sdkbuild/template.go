package sdkbuild

import (
	"regexp"
	"strings"
)

// $$ escapes, $name and ${name} substitute.
var templateVarRe = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\})`)

// SafeSubstitute expands $name, ${name} and $$ in tmpl. Variables missing
// from vars stay in the output exactly as written, and a lone '$' is kept.
func SafeSubstitute(tmpl string, vars map[string]string) string {
	var b strings.Builder
	last := 0
	for _, m := range templateVarRe.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(tmpl[last:m[0]])
		last = m[1]
		switch {
		case m[2] >= 0:
			b.WriteByte('$')
		case m[4] >= 0:
			if v, ok := vars[tmpl[m[4]:m[5]]]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(tmpl[m[0]:m[1]])
			}
		case m[6] >= 0:
			if v, ok := vars[tmpl[m[6]:m[7]]]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(tmpl[m[0]:m[1]])
			}
		}
	}
	b.WriteString(tmpl[last:])
	return b.String()
}

// UnresolvedVariables lists the variable names in tmpl that vars does not define.
func UnresolvedVariables(tmpl string, vars map[string]string) []string {
	var missing []string
	for _, m := range templateVarRe.FindAllStringSubmatch(tmpl, -1) {
		name := m[2]
		if name == "" {
			name = m[3]
		}
		if name == "" {
			continue
		}
		if _, ok := vars[name]; !ok {
			missing = appendUnique(missing, name)
		}
	}
	return missing
}
