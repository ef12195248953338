package sheetboard

import (
	"cmp"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var numericPattern = regexp.MustCompile(`^-?\d+([.,]\d+)?$`)

// supportedLocales lists the collation languages a viewer can get; the
// first is the default.
var supportedLocales = []language.Tag{
	language.Spanish,
	language.English,
	language.Portuguese,
	language.Catalan,
	language.French,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// collators are not safe for concurrent use, so each language keeps a pool.
var collatorPools sync.Map

// MatchLocale picks the supported language closest to an Accept-Language
// value or a BCP 47 tag. Anything unparseable resolves to Spanish.
func MatchLocale(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supportedLocales[0].String()
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return supportedLocales[0].String()
	}
	return supportedLocales[idx].String()
}

// Collation orders text for one language, ignoring case and accents, with
// numeric runs compared by value ("item2" < "item10"). The zero value is
// Spanish.
type Collation struct {
	locale string
}

// CollationFor returns the collation of a locale as produced by MatchLocale.
func CollationFor(locale string) Collation {
	return Collation{locale: MatchLocale(locale)}
}

// Locale names the collation language.
func (c Collation) Locale() string {
	if c.locale == "" {
		return supportedLocales[0].String()
	}
	return c.locale
}

func (c Collation) pool() *sync.Pool {
	locale := c.Locale()
	if p, ok := collatorPools.Load(locale); ok {
		return p.(*sync.Pool)
	}
	tag := language.Make(locale)
	p, _ := collatorPools.LoadOrStore(locale, &sync.Pool{
		New: func() any {
			return collate.New(tag, collate.Loose, collate.Numeric)
		},
	})
	return p.(*sync.Pool)
}

// CompareText compares two strings.
func (c Collation) CompareText(a, b string) int {
	p := c.pool()
	col := p.Get().(*collate.Collator)
	defer p.Put(col)
	return col.CompareString(a, b)
}

// CompareCells orders two values of the same column: chronologically when
// both parse as dates, numerically when both look numeric, otherwise as
// collated text.
//
// The fallback is decided per pair, so a column mixing dates, numbers and
// free text has no total order: "2025-12-31" < "01/01/2026" as dates, while
// "01/01/2026" < "500" < "2025-12-31" as text. Sorting such a column still
// terminates, but the relative order of the mixed values is unspecified.
func (c Collation) CompareCells(a, b Cell) int {
	if ad, ok := a.Date(); ok {
		if bd, ok := b.Date(); ok {
			return ad.Compare(bd)
		}
	}
	if looksNumericCell(a) && looksNumericCell(b) {
		af, aok := a.Float()
		bf, bok := b.Float()
		if aok && bok {
			return cmp.Compare(af, bf)
		}
	}
	return c.CompareText(a.String(), b.String())
}

// LooksNumeric reports whether s is an optionally negative integer or decimal
// using either '.' or ',' as separator.
func LooksNumeric(s string) bool {
	return numericPattern.MatchString(strings.TrimSpace(s))
}

// CompareCells compares with the default Spanish collation. See
// Collation.CompareCells for the ordering rules and their limits on mixed
// columns.
func CompareCells(a, b Cell) int {
	return Collation{}.CompareCells(a, b)
}

// CompareText compares two strings with the default Spanish collation.
func CompareText(a, b string) int {
	return Collation{}.CompareText(a, b)
}

func looksNumericCell(c Cell) bool {
	if c.kind == CellNumber {
		return true
	}
	return LooksNumeric(c.text)
}
