package preprocess

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Coercers convert a raw cell into its canonical Go type. They return
// ok=false when the cell cannot be interpreted; nil input is a valid null.

// noExperience marks a posting that requires no experience.
const noExperience = "no_exp"

// maxYears bounds experience so the int conversion is always defined.
const maxYears = math.MaxInt32

var yearsSuffix = regexp.MustCompile(`(?i)^(\d+)\s*(y|yr|yrs|year|years)?$`)

func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// toYears maps "no_exp"/null/NaN → nil, "3y"/"3" → 3 and integral numbers → int.
// Negative, fractional and out-of-range values are rejected.
func toYears(v any) (any, bool) {
	if v == nil || isNaN(v) {
		return nil, true
	}
	switch t := v.(type) {
	case int:
		return yearsInt(int64(t))
	case int32:
		return yearsInt(int64(t))
	case int64:
		return yearsInt(t)
	case float32:
		if math.IsNaN(float64(t)) {
			return nil, true
		}
		return yearsFloat(float64(t))
	case float64:
		return yearsFloat(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, noExperience) {
			return nil, true
		}
		m := yearsSuffix.FindStringSubmatch(s)
		if m == nil {
			return nil, false
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, false
		}
		return yearsInt(n)
	default:
		return nil, false
	}
}

// yearsInt keeps experience within [0, maxYears]; anything else is a bad cell.
func yearsInt(n int64) (any, bool) {
	if n < 0 || n > maxYears {
		return nil, false
	}
	return int(n), true
}

func yearsFloat(f float64) (any, bool) {
	if f != math.Trunc(f) || f < 0 || f > maxYears {
		return nil, false
	}
	return int(f), true
}

// toText renders scalars as strings; null and NaN stay nil.
func toText(v any) (any, bool) {
	if v == nil || isNaN(v) {
		return nil, true
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case time.Time:
		return t.UTC().Format(time.RFC3339), true
	default:
		return nil, false
	}
}

// toStrings accepts native lists, JSON arrays and Python list literals.
func toStrings(v any) (any, bool) {
	if v == nil || isNaN(v) {
		return nil, true
	}
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, true
		}
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out, true
		}
		return pyStringList(s)
	default:
		return nil, false
	}
}

// pyStringList parses a Python repr of a list of strings: ['a', "b's", 'it\'s'].
func pyStringList(s string) (any, bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	out := []string{}
	for body != "" {
		item, rest, ok := pyQuoted(body)
		if !ok {
			return nil, false
		}
		out = append(out, item)
		body = strings.TrimSpace(rest)
		if body == "" {
			break
		}
		if body[0] != ',' {
			return nil, false
		}
		body = strings.TrimSpace(body[1:])
	}
	return out, true
}

// pyQuoted reads one quoted literal from the start of s, resolving
// backslash escapes, and returns the remainder after the closing quote.
func pyQuoted(s string) (string, string, bool) {
	q := s[0]
	if q != '\'' && q != '"' {
		return "", "", false
	}
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == q:
			return sb.String(), s[i+1:], true
		case c == '\\' && i+1 < len(s):
			i++
			switch e := s[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(e)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", "", false
}

// toVector accepts native numeric lists, JSON arrays and numpy-style
// space-separated literals. Null and NaN stay nil.
func toVector(v any) (any, bool) {
	if v == nil || isNaN(v) {
		return nil, true
	}
	switch t := v.(type) {
	case []float32:
		out := make([]float32, len(t))
		copy(out, t)
		return out, true
	case []float64:
		out := make([]float32, len(t))
		for i, x := range t {
			out[i] = float32(x)
		}
		return out, true
	case []any:
		out := make([]float32, len(t))
		for i, item := range t {
			f, ok := number(item)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, true
		}
		var nums []float64
		if err := json.Unmarshal([]byte(s), &nums); err == nil {
			return toVector(nums)
		}
		return numpyVector(s)
	default:
		return nil, false
	}
}

func numpyVector(s string) (any, bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, false
	}
	fields := strings.Fields(s[1 : len(s)-1])
	out := make([]float32, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSuffix(f, ","), 32)
		if err != nil {
			return nil, false
		}
		out[i] = float32(x)
	}
	return out, true
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	default:
		return 0, false
	}
}
