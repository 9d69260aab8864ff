package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// Amount is a pt-BR formatted decimal ("1.234,56"). Upstream occasionally sends
// plain JSON numbers; those are normalised to the same comma-decimal form.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || string(raw) == "null" {
		*a = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		*a = ""
		return nil
	}
	*a = Amount(strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1))
	return nil
}

// Value parses the amount; ok is false when it holds no number.
func (a Amount) Value() (float64, bool) {
	return ParseAmount(string(a))
}

// ParseAmount drops everything except digits, the decimal comma and a minus
// sign ahead of the first digit, then reads the comma as the decimal point:
// "R$ 1.234,56" -> 1234.56, "R$ -12,50" -> -12.5.
func ParseAmount(s string) (float64, bool) {
	var b strings.Builder
	commas := 0
	negative := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',':
			commas++
			b.WriteRune('.')
		case r == '-' && b.Len() == 0:
			negative = true
		}
	}
	cleaned := b.String()
	if cleaned == "" || commas > 1 || cleaned == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// FormatBRL renders v as "R$ 1.234,56".
func FormatBRL(v float64) string {
	return "R$ " + brlPrinter.Sprintf("%.2f", v)
}
