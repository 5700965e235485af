package server

import (
	"fmt"
	"strconv"
	"strings"
)

// formatValue renders a metric value using a d3-style number format such as
// ",.0f", "$,.2f" or ".1%". Values that are not numbers, and formats it does
// not understand, fall back to the plain value.
func formatValue(v any, format string) string {
	if v == nil {
		return "n/a"
	}
	f, ok := toFloat(v)
	if !ok || format == "" {
		return fmt.Sprint(v)
	}

	prefix := ""
	if strings.HasPrefix(format, "$") {
		prefix, format = "$", format[1:]
	}
	grouping := strings.HasPrefix(format, ",")
	format = strings.TrimPrefix(format, ",")

	precision := -1
	kind := byte('f')
	if strings.HasPrefix(format, ".") && len(format) >= 3 {
		p, err := strconv.Atoi(format[1 : len(format)-1])
		if err != nil || p < 0 {
			return fmt.Sprint(v)
		}
		precision, kind = p, format[len(format)-1]
	} else if format != "" {
		return fmt.Sprint(v)
	}

	suffix := ""
	switch kind {
	case 'f':
	case '%':
		f *= 100
		suffix = "%"
	default:
		return fmt.Sprint(v)
	}

	s := strconv.FormatFloat(f, 'f', precision, 64)
	if grouping {
		s = groupThousands(s)
	}
	if strings.HasPrefix(s, "-") {
		return "-" + prefix + s[1:] + suffix
	}
	return prefix + s + suffix
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
}
