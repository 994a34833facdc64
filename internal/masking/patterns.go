// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package masking

import (
	"regexp"
	"strings"
)

// rule is one ordered substitution applied to strings. Rules with apply
// set rewrite the whole string themselves.
type rule struct {
	name    string
	pattern *regexp.Regexp
	replace func(match []string) string
	apply   func(s string) string
}

var (
	bearerPattern = regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9\-._~+/]+=*`)

	inlineSecretPattern = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[-_]?key|access[-_]?token|client[-_]?secret)(\s*[:=]\s*)("[^"]*"|[^\s,;&"]+)`)

	emailPattern = regexp.MustCompile(`([A-Za-z0-9._%+\-])[A-Za-z0-9._%+\-]*@([A-Za-z0-9])[A-Za-z0-9.\-]*(\.[A-Za-z]{2,})\b`)

	// cardRunPattern matches digit runs long enough to hold a card number.
	// Digits may be grouped by single spaces or dashes.
	cardRunPattern = regexp.MustCompile(`\b\d(?:[ \-]?\d){12,}\b`)

	ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{3}\)|\b\d{3})[\s.\-]?\d{3}[\s.\-]\d{4}\b`)
)

func defaultRules() []rule {
	return []rule{
		{
			name:    "bearer",
			pattern: bearerPattern,
			replace: func(m []string) string { return m[1] + " " + Marker },
		},
		{
			name:    "inline_secret",
			pattern: inlineSecretPattern,
			replace: func(m []string) string { return m[1] + m[2] + Marker },
		},
		{
			// john.doe@example.com -> j***@e*****.com
			name:    "email",
			pattern: emailPattern,
			replace: func(m []string) string { return m[1] + "***@" + m[2] + "*****" + m[3] },
		},
		{
			name:  "credit_card",
			apply: maskCards,
		},
		{
			name:    "ssn",
			pattern: ssnPattern,
			replace: func([]string) string { return "***-**-****" },
		},
		{
			name:    "phone",
			pattern: phonePattern,
			replace: func([]string) string { return "***-***-****" },
		},
	}
}

// MaskString applies the pattern table in order. Strings without a match
// are returned unchanged.
func (m *Masker) MaskString(s string) string {
	if s == "" {
		return s
	}
	for _, r := range m.rules {
		if r.apply != nil {
			s = r.apply(s)
			continue
		}
		s = r.pattern.ReplaceAllStringFunc(s, func(match string) string {
			return r.replace(r.pattern.FindStringSubmatch(match))
		})
	}
	return s
}

// luhnValid reports whether the digits in s pass the Luhn checksum, which
// keeps most order numbers and millisecond timestamps out of the card rule.
func luhnValid(s string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 13 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

const (
	cardMaskPrefix = "****-****-****-"
	cardMinDigits  = 13
	cardMaxDigits  = 19
)

// maskCards replaces every Luhn-valid 13 to 19 digit window inside a digit
// run with ****-****-****-NNNN. Windows aligned to the run's digit groups
// are taken first, so "qty 2 4111 1111 1111 1111" masks the last four
// groups. A run directly following a masked card skips its leading four
// digits, which are that card's retained suffix.
func maskCards(s string) string {
	locs := cardRunPattern.FindAllStringIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(s[last:loc[0]])
		b.WriteString(maskCardRun(s[loc[0]:loc[1]], strings.HasSuffix(s[:loc[0]], cardMaskPrefix)))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

type digitSpan struct{ from, to int }

func maskCardRun(run string, afterMask bool) string {
	var pos []int
	var digits []byte
	for i := 0; i < len(run); i++ {
		if run[i] >= '0' && run[i] <= '9' {
			pos = append(pos, i)
			digits = append(digits, run[i])
		}
	}
	n := len(digits)
	groupStart := func(i int) bool { return i == 0 || pos[i]-1 != pos[i-1] }
	groupEnd := func(i int) bool { return i == n-1 || pos[i+1] != pos[i]+1 }

	start := 0
	if afterMask {
		start = 4
	}

	// scan greedily takes the leftmost, then longest, valid window.
	scan := func(from, to int, aligned bool) []digitSpan {
		var found []digitSpan
		for i := from; i+cardMinDigits <= to; i++ {
			if aligned && !groupStart(i) {
				continue
			}
			for j := min(to, i+cardMaxDigits); j >= i+cardMinDigits; j-- {
				if aligned && !groupEnd(j-1) {
					continue
				}
				if luhnValid(string(digits[i:j])) {
					found = append(found, digitSpan{i, j})
					i = j - 1
					break
				}
			}
		}
		return found
	}

	var spans []digitSpan
	prev := start
	for _, sp := range append(scan(start, n, true), digitSpan{n, n}) {
		spans = append(spans, scan(prev, sp.from, false)...)
		if sp.from < n {
			spans = append(spans, sp)
		}
		prev = sp.to
	}
	if len(spans) == 0 {
		return run
	}

	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(run[last:pos[sp.from]])
		b.WriteString(cardMaskPrefix)
		b.Write(digits[sp.to-4 : sp.to])
		last = pos[sp.to-1] + 1
	}
	b.WriteString(run[last:])
	return b.String()
}
