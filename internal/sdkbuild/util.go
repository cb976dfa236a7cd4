package sdkbuild

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// color-compatible printer interface (works with *color.Theme and *color.Style)
type colorPrinter interface {
	Printf(format string, a ...any)
	Println(a ...any)
	Sprint(a ...any) string
}

// cPrintf prints with a colored style or falls back to fmt.Printf when nil
func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Printf(format, args...)
	}
}

// step prints a "-> message" progress line to the logger.
func step(logger io.Writer, format string, args ...any) {
	if logger == nil {
		logger = os.Stdout
	}
	fmt.Fprint(logger, colArrow.Sprint("-> "))
	fmt.Fprintln(logger, colSuccess.Sprintf(format, args...))
}

// warnf prints a warning line to stderr.
func warnf(format string, args ...any) {
	fmt.Fprint(os.Stderr, colArrow.Sprint("-> "))
	fmt.Fprintln(os.Stderr, colWarn.Sprintf(format, args...))
}

// splitList splits a separator-delimited list, trimming blanks and dropping empty items.
func splitList(s, sep string) []string {
	var out []string
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// appendUnique appends items that are not yet present, preserving order.
func appendUnique(list []string, items ...string) []string {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[v] = true
	}
	for _, v := range items {
		if !seen[v] {
			seen[v] = true
			list = append(list, v)
		}
	}
	return list
}

// stringList is a repeatable flag that also accepts comma-separated values.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, splitList(v, ",")...)
	return nil
}
