package irc

// foldByte maps one byte to its rfc1459 lowercase form: ASCII A-Z plus
// '[', ']', '\' and '^', which IRC treats as the uppercase variants of
// '{', '}', '|' and '~'.
func foldByte(b byte) byte {
	switch {
	case b >= 'A' && b <= 'Z':
		return b + ('a' - 'A')
	case b == '[':
		return '{'
	case b == ']':
		return '}'
	case b == '\\':
		return '|'
	case b == '^':
		return '~'
	}
	return b
}

// CaseFold returns the rfc1459 casefolded form of s, suitable as a map key.
func CaseFold(s string) string {
	b := []byte(s)
	for i := range b {
		b[i] = foldByte(b[i])
	}
	return string(b)
}

// CaseFoldEq reports whether two identifiers are equal under rfc1459
// casefolding. Differing lengths are never equal.
func CaseFoldEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if foldByte(a[i]) != foldByte(b[i]) {
			return false
		}
	}
	return true
}
