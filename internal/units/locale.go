// ABOUTME: Locale-aware number parsing and pluralized unit labels.
// ABOUTME: Language tags are reduced to their base language before lookup.
package units

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harperreed/tracker/internal/models"
	"golang.org/x/text/language"
)

// baseLanguage reduces a BCP 47 tag such as "pt-BR" to "pt".
func baseLanguage(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	base, _ := tag.Base()
	return base.String()
}

var arabicReplacer = strings.NewReplacer(
	"٬", "",
	"٫", ".",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

var commaDecimalReplacer = strings.NewReplacer(" ", "", ".", "", ",", ".")

// ToISONumber rewrites a localized number into the form strconv accepts.
func ToISONumber(localized, lang string) string {
	switch baseLanguage(lang) {
	case "ar":
		return arabicReplacer.Replace(localized)
	case "es", "de", "fr", "pt", "tr":
		return commaDecimalReplacer.Replace(localized)
	default:
		return strings.ReplaceAll(localized, ",", "")
	}
}

// ParseNumber parses a localized number.
func ParseNumber(localized, lang string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(ToISONumber(localized, lang)), 64)
}

// CoerceNonNegative parses a localized target, returning fallback when the
// input is not a number or is negative.
func CoerceNonNegative(input, lang string, fallback float64) float64 {
	v, err := ParseNumber(input, lang)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Display returns the unit label for value, preferring the plural form the
// unit defines for that count.
func Display(value float64, unit models.UnitType) string {
	var label string
	switch value {
	case 0:
		label = unit.DisplayZero
	case 1:
		label = unit.DisplayOne
	case 2:
		label = unit.DisplayTwo
	}
	if label == "" && value != 1 {
		label = unit.DisplayOther
	}
	if label == "" {
		if value == 1 {
			label = upperFirst(unit.Unit)
		} else {
			label = upperFirst(unit.Display)
		}
	}
	label = strings.ReplaceAll(label, "{{count}}", "")
	return strings.Join(strings.Fields(label), " ")
}
