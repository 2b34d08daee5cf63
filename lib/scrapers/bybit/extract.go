package bybit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"ordertrack-backend/lib/textutil"
)

// Extraction works as a ranked rule list per field: specialized patterns
// are tried before generic ones and the first rule that matches wins.
// Precedence lives in the order of each slice, not in nested branching.

type ruleInput struct {
	text   string
	folded string
}

type rule[T any] struct {
	name  string
	apply func(in ruleInput) (T, bool)
}

func firstRule[T any](in ruleInput, rules []rule[T]) (T, string, bool) {
	for _, r := range rules {
		v, ok := r.apply(in)
		if ok {
			return v, r.name, true
		}
	}
	var zero T
	return zero, "", false
}

var (
	longDigitRunRegex  = regexp.MustCompile(`\d{15,}`)
	alphaNumTokenRegex = regexp.MustCompile(`[A-Z0-9]{8,}`)
	genericPairRegex   = regexp.MustCompile(`([A-Z]{3,})[\s/\-]?([A-Z]{3,})`)
	singleAssetRegex   = regexp.MustCompile(`\b([A-Z]{3,})\b`)
	numericTokenRegex  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	feeRegex           = regexp.MustCompile(`(?i)(?:fees?|комиссия)\s*:?\s*(\d+(?:[.,]\d+)?)`)
)

// exchange-internal order numbers are long digit strings, anything of 15+
// digits is a better id candidate than a generic alphanumeric token
var orderIDRules = []rule[string]{
	{
		name: "long-digit-run",
		apply: func(in ruleInput) (string, bool) {
			runs := longDigitRunRegex.FindAllString(in.text, -1)
			if len(runs) == 0 {
				return "", false
			}
			longest := runs[0]
			for _, r := range runs[1:] {
				if len(r) > len(longest) {
					longest = r
				}
			}
			return longest, true
		},
	},
	{
		name: "alphanumeric-token",
		apply: func(in ruleInput) (string, bool) {
			token := alphaNumTokenRegex.FindString(in.text)
			return token, token != ""
		},
	},
}

const (
	defaultBaseAsset  = "USDT"
	defaultQuoteAsset = "RUB"
)

var symbolRules = []rule[string]{
	{
		// the P2P history page lists both legs of the one pair this
		// tracker is tuned for, seeing both is a direct hit
		name: "known-pair",
		apply: func(in ruleInput) (string, bool) {
			if strings.Contains(in.text, defaultQuoteAsset) && strings.Contains(in.text, defaultBaseAsset) {
				return defaultBaseAsset + "/" + defaultQuoteAsset, true
			}
			return "", false
		},
	},
	{
		name: "generic-pair",
		apply: func(in ruleInput) (string, bool) {
			m := genericPairRegex.FindStringSubmatch(in.text)
			if m == nil {
				return "", false
			}
			return m[1] + "/" + m[2], true
		},
	},
	{
		name: "single-asset",
		apply: func(in ruleInput) (string, bool) {
			m := singleAssetRegex.FindStringSubmatch(in.text)
			if m == nil {
				return "", false
			}
			return m[1] + "/" + defaultBaseAsset, true
		},
	},
}

var (
	buyKeywords  = []string{"buy", "покупка", "long", "покупать"}
	sellKeywords = []string{"sell", "продажа", "short", "продать"}
)

var sideRules = []rule[Side]{
	{
		name: "buy-keyword",
		apply: func(in ruleInput) (Side, bool) {
			if textutil.ContainsAny(in.folded, buyKeywords) {
				return SideBuy, true
			}
			return "", false
		},
	},
	{
		name: "sell-keyword",
		apply: func(in ruleInput) (Side, bool) {
			if textutil.ContainsAny(in.folded, sellKeywords) {
				return SideSell, true
			}
			return "", false
		},
	},
}

var statusKeywords = []struct {
	status   Status
	keywords []string
}{
	{StatusFilled, []string{"filled", "completed", "выполнен", "done", "исполнен", "завершен", "завершено"}},
	{StatusCanceled, []string{"canceled", "cancelled", "отменен", "отменён"}},
	{StatusPending, []string{"pending", "ожидание", "активен", "открыт"}},
	{StatusAppealed, []string{"appealed", "апелляция"}},
}

func statusFromKeywords(folded string) (Status, bool) {
	for _, group := range statusKeywords {
		if textutil.ContainsAny(folded, group.keywords) {
			return group.status, true
		}
	}
	return "", false
}

type datePattern struct {
	regex  *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\d{2}/\d{2}/\d{4}`), "02/01/2006"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`), "02.01.2006"},
	{regexp.MustCompile(`\d{2}-\d{2}-\d{2}`), "02-01-06"},
}

func dateFromText(text string) (time.Time, bool) {
	for _, p := range datePatterns {
		match := p.regex.FindString(text)
		if match == "" {
			continue
		}
		t, err := time.Parse(p.layout, match)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

var (
	taggedAmountMu    sync.Mutex
	taggedAmountCache = map[string]*regexp.Regexp{}
)

// the asset set is tiny in practice (the legs of whatever pairs the page
// shows), so compiled patterns are kept for the life of the process
func taggedAmountRegex(asset string) *regexp.Regexp {
	taggedAmountMu.Lock()
	defer taggedAmountMu.Unlock()

	re, ok := taggedAmountCache[asset]
	if !ok {
		re = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*` + regexp.QuoteMeta(asset) + `\b`)
		taggedAmountCache[asset] = re
	}
	return re
}

// taggedAmount finds a number immediately followed by the given asset
// ticker, e.g. "83,75 RUB".
func taggedAmount(text, asset string) float64 {
	if asset == "" {
		return 0
	}
	m := taggedAmountRegex(asset).FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return parseAmount(m[1])
}

func symbolLegs(symbol string) (base, quote string) {
	base, quote, found := strings.Cut(symbol, "/")
	if !found || base == "" || quote == "" {
		return defaultBaseAsset, defaultQuoteAsset
	}
	return base, quote
}

// plausible unit-price window for the pre-declared quote asset, used
// only by the positional number fallback
const (
	minPlausiblePrice = 50
	maxPlausiblePrice = 200
)

// extractAmounts resolves quantity and price. Currency-tagged captures
// are tried first (number followed by the quote ticker is the price,
// number followed by the base ticker is the quantity). Whatever remains
// unresolved falls back to positional assignment over every numeric
// token in the text, which has no correctness guarantee beyond "better
// than nothing".
func extractAmounts(in ruleInput, symbol string) (quantity, price float64) {
	base, quote := symbolLegs(symbol)

	price = taggedAmount(in.text, quote)
	quantity = taggedAmount(in.text, base)
	if price > 0 && quantity > 0 {
		return quantity, price
	}

	var numbers []float64
	for _, token := range numericTokenRegex.FindAllString(in.text, -1) {
		n := parseAmount(token)
		if n > 0 {
			numbers = append(numbers, n)
		}
	}

	if price == 0 {
		for _, n := range numbers {
			if n >= minPlausiblePrice && n <= maxPlausiblePrice {
				price = n
				break
			}
		}
	}
	if quantity == 0 {
		for _, n := range numbers {
			if n > 1 && n != price {
				quantity = n
				break
			}
		}
	}
	if quantity == 0 && len(numbers) > 0 {
		quantity = numbers[0]
	}
	if price == 0 && len(numbers) > 1 {
		price = numbers[1]
	}
	return quantity, price
}

func synthesizeOrderID(symbol string, side Side, now time.Time) string {
	return fmt.Sprintf(
		"%s_%s_%d",
		strings.ReplaceAll(symbol, "/", ""),
		side,
		now.UnixMilli(),
	)
}

func extractFee(in ruleInput) float64 {
	m := feeRegex.FindStringSubmatch(in.text)
	if m == nil {
		return 0
	}
	return parseAmount(m[1])
}

// Extract parses a classified row text into an OrderRecord. It returns
// false when the result misses one of the required fields (order id,
// symbol, side), such a row is discarded without further processing.
// Extraction never touches the page, it only produces a value.
func Extract(text string, attr Attribution, now time.Time) (OrderRecord, bool) {
	in := ruleInput{text: text, folded: textutil.Fold(text)}

	symbol, _, _ := firstRule(in, symbolRules)
	side, _, _ := firstRule(in, sideRules)

	orderID, _, found := firstRule(in, orderIDRules)
	if !found && symbol != "" && side != "" {
		// not guaranteed unique across reloads, but lets id-less rows
		// through instead of dropping them
		orderID = synthesizeOrderID(symbol, side, now)
	}

	status, found := statusFromKeywords(in.folded)
	if !found {
		// optimistic default, some layouts hide the status text entirely
		status = StatusFilled
	}

	executedAt, found := dateFromText(in.text)
	if !found {
		executedAt = now
	}

	quantity, price := extractAmounts(in, symbol)

	total := 0.0
	if quantity > 0 && price > 0 {
		total = quantity * price
	}

	record := OrderRecord{
		OrderID:      orderID,
		EmployeeID:   attr.EmployeeID,
		Platform:     Platform,
		AccountLabel: attr.AccountLabel,
		Symbol:       symbol,
		Side:         side,
		Quantity:     quantity,
		Price:        price,
		Total:        total,
		Fee:          extractFee(in),
		Status:       status,
		ExecutedAt:   executedAt,
	}
	if !record.Deliverable() {
		return OrderRecord{}, false
	}
	return record, true
}
