package sms

// GSM 03.38 default alphabet. Characters in the basic set encode as one
// septet; characters in the extension table encode as two (escape + char).
const gsm7Basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ" +
	" !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§" +
	"¿abcdefghijklmnopqrstuvwxyzäöñüà"

var gsm7Set = func() map[rune]struct{} {
	set := make(map[rune]struct{}, 128)
	for _, r := range gsm7Basic {
		set[r] = struct{}{}
	}
	return set
}()

var gsm7Ext = map[rune]struct{}{
	'\f': {}, '^': {}, '{': {}, '}': {}, '\\': {},
	'[': {}, '~': {}, ']': {}, '|': {}, '€': {},
}

// septets returns the encoded size of r in the GSM-7 alphabet,
// or 0 if r is not representable.
func septets(r rune) int {
	if _, ok := gsm7Set[r]; ok {
		return 1
	}
	if _, ok := gsm7Ext[r]; ok {
		return 2
	}
	return 0
}

// IsGSM7 reports whether every character of s is representable in the
// GSM 03.38 default alphabet.
func IsGSM7(s string) bool {
	for _, r := range s {
		if septets(r) == 0 {
			return false
		}
	}
	return true
}
