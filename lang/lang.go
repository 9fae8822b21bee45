// Package lang fixes the set of caption translation languages. Every
// cached segment carries a slot for each code, and only these codes.
package lang

// Supported lists the translation language codes in display order.
var Supported = []string{"en", "vi", "zh", "ja", "ko", "th", "es", "fr", "de", "ru"}

func IsSupported(code string) bool {
	for _, c := range Supported {
		if c == code {
			return true
		}
	}
	return false
}
