package model

import (
	"strings"
	"unicode"
)

const txCodeLength = 8

// TransactionCode turns a settlement identifier into a short code such as
// "TX-3F2A9C1B". Non-alphanumeric characters are skipped.
func TransactionCode(settlementID string) string {
	var b strings.Builder
	b.WriteString("TX-")
	n := 0
	for _, r := range settlementID {
		if n == txCodeLength {
			break
		}
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		n++
	}
	if n == 0 {
		return NoTransaction
	}
	return b.String()
}
