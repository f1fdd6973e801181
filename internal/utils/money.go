package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatMinor renders an amount held in minor units (cents) as "12.34".
func FormatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s.%02d", sign, formatThousand(amount/100), amount%100)
}

// FormatMoney prefixes FormatMinor with the currency code.
func FormatMoney(currency string, amount int64) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return FormatMinor(amount)
	}
	return currency + " " + FormatMinor(amount)
}

// ParseMinor parses "12.34" or "1,234.5" into minor units.
func ParseMinor(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("invalid amount")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q: more than two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || w < 0 || f < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		return -(w*100 + f), nil
	}
	return w*100 + f, nil
}

func formatThousand(n int64) string {
	if n == 0 {
		return "0"
	}
	str := strconv.FormatInt(n, 10)
	var out strings.Builder
	for i, c := range str {
		if i != 0 && (len(str)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
