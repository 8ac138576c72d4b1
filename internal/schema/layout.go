package schema

import (
	"fmt"
	"strings"
)

// strftime verb -> Go reference-time element. Only the verbs that appear in
// the reference data configs are supported; anything else is an error
// rather than a silent guess.
var strftimeVerbs = map[byte]string{
	'b': "Jan",
	'B': "January",
	'd': "02",
	'H': "15",
	'j': "002",
	'm': "01",
	'M': "04",
	'S': "05",
	'y': "06",
	'Y': "2006",
}

// Layout converts a strftime-style date format (e.g. "%b %Y") into a Go
// reference-time layout ("Jan 2006"). Strings without a '%' are assumed to
// already be Go layouts and are returned unchanged.
func Layout(format string) (string, error) {
	if !strings.ContainsRune(format, '%') {
		return format, nil
	}

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return "", fmt.Errorf("date format %q: trailing %%", format)
		}
		if format[i] == '%' {
			b.WriteByte('%')
			continue
		}
		elem, ok := strftimeVerbs[format[i]]
		if !ok {
			return "", fmt.Errorf("date format %q: unsupported verb %%%c", format, format[i])
		}
		b.WriteString(elem)
	}
	return b.String(), nil
}
