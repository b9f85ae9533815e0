package query

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/nidhogg/giffly/internal/lexicon"
)

// amount captures a number, optionally grouped by spaces ("2 000"), and an
// optional thousands multiplier ("2 тыс", "3к") that must not run into a word.
const amount = `(\d{1,3}(?:[ \x{00a0}]\d{3})+|\d+)(?:\s*(тыс[а-яё]*\.?|к)(?:[^\p{L}]|$))?`

// budgetPatterns are tried in order; the first pattern that matches wins,
// so specific phrasings take priority over the bare "бюджет N" fallback.
var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:не\s+дороже|не\s+более|не\s+больше|максимум|no\s+more\s+than|at\s+most)\s+` + amount),
	regexp.MustCompile(`(?:^|[^\p{L}])(?:до|up\s+to|under|below)\s+` + amount),
	regexp.MustCompile(`(?:бюджет|budget)\s*(?:до|в|около|примерно|of|is)?\s*` + amount),
	regexp.MustCompile(`(?:около|примерно|в\s+районе|around|about)\s+` + amount),
	regexp.MustCompile(`бюджет\D*(\d+)`),
}

// monthStems start the month names that follow a day number in a date
// ("до 8 марта"). May is matched whole.
var monthStems = []string{
	"январ", "феврал", "март", "апрел", "июн", "июл", "август",
	"сентябр", "октябр", "ноябр", "декабр",
}

// ExtractBudget finds a price ceiling in text. It returns false when no
// pattern matches. A number followed by a month is a date, not an amount.
func ExtractBudget(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, re := range budgetPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(lower, -1) {
			if loc[2] < 0 {
				continue
			}
			thousands := len(loc) > 5 && loc[4] >= 0
			if !thousands && startsWithMonth(lower[loc[1]:]) {
				continue
			}
			n, err := parseAmount(lower[loc[2]:loc[3]], thousands)
			switch {
			case errors.Is(err, errTooLarge):
				return 0, false
			case err == nil:
				return n, true
			}
		}
	}
	return 0, false
}

var errTooLarge = errors.New("amount out of range")

func parseAmount(s string, thousands bool) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, err
	}
	if thousands {
		if n > math.MaxInt/1000 {
			return 0, errTooLarge
		}
		n *= 1000
	}
	return n, nil
}

func startsWithMonth(rest string) bool {
	words := strings.FieldsFunc(rest, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return false
	}
	w := words[0]
	if w == "май" || w == "мая" {
		return true
	}
	for _, stem := range monthStems {
		if strings.HasPrefix(w, stem) {
			return true
		}
	}
	return false
}

// IsBudgetToken reports whether a query token only expresses an amount of
// money: a number, a number glued to a currency unit ("2000р"), or a unit.
func IsBudgetToken(dict *lexicon.Dictionary, token string) bool {
	i := 0
	for i < len(token) && token[i] >= '0' && token[i] <= '9' {
		i++
	}
	rest := token[i:]
	if i > 0 && rest == "" {
		return true
	}
	return dict.IsBudgetToken(rest)
}
