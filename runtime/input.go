package lruntime

import (
	"strconv"
	"strings"
)

// normalizeNumber folds full-width digits and signs typed through an IME
// and accepts a decimal comma.
func normalizeNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '０' && r <= '９':
			b.WriteRune('0' + (r - '０'))
		case r == '＋':
			b.WriteByte('+')
		case r == '－' || r == 'ー' || r == '―' || r == '−':
			b.WriteByte('-')
		case r == '．' || r == ',' || r == '，':
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func parseIntInput(raw string) (int64, bool) {
	s := normalizeNumber(raw)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseRealInput(raw string) (float64, bool) {
	s := normalizeNumber(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBoolInput(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "verdadeiro", "v", "sim", "s", "1":
		return true, true
	case "falso", "f", "nao", "não", "n", "0":
		return false, true
	}
	return false, false
}
