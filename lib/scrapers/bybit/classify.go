package bybit

import (
	"regexp"
	"unicode/utf8"

	"ordertrack-backend/lib/textutil"
)

// RejectReason identifies which classification rule a text block failed.
// It exists for diagnostics, control flow only cares about Accepted.
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectTooShort    RejectReason = "too_short"
	RejectTooLong     RejectReason = "too_long"
	RejectNoCurrency  RejectReason = "no_currency"
	RejectNoDecimal   RejectReason = "no_decimal_number"
	RejectNoDirection RejectReason = "no_direction"
	RejectUiNoise     RejectReason = "ui_noise"
)

type Classification struct {
	Accepted bool
	Reason   RejectReason
}

func accepted() Classification {
	return Classification{Accepted: true}
}

func rejected(reason RejectReason) Classification {
	return Classification{Reason: reason}
}

const (
	// shorter text is a UI fragment (label, button), longer text is an
	// aggregate container holding several rows at once
	minRowTextLen = 30
	maxRowTextLen = 500
)

var currencyTokens = []string{"usdt", "rub", "btc", "eth"}

var directionTokens = []string{"продажа", "покупка", "buy", "sell"}

// column headers and filter bars on the order-history page render their
// label twice, which is a reliable tell of UI chrome rather than a data row
var uiNoisePhrases = []string{
	"все все",
	"экспорт экспорт",
	"монета монета",
	"тип тип",
	"статус статус",
	"купить / продать купить / продать",
}

var decimalNumberRegex = regexp.MustCompile(`\d+[.,]\d+`)

// Classify decides whether a candidate row's rendered text looks like a
// single order. Every rule has to pass for the text to be accepted.
func Classify(text string) Classification {
	length := utf8.RuneCountInString(text)
	if length < minRowTextLen {
		return rejected(RejectTooShort)
	}
	if length > maxRowTextLen {
		return rejected(RejectTooLong)
	}

	folded := textutil.Fold(text)

	if !textutil.ContainsAny(folded, currencyTokens) {
		return rejected(RejectNoCurrency)
	}
	if !decimalNumberRegex.MatchString(text) {
		return rejected(RejectNoDecimal)
	}
	if !textutil.ContainsAny(folded, directionTokens) {
		return rejected(RejectNoDirection)
	}
	if textutil.ContainsAny(folded, uiNoisePhrases) {
		return rejected(RejectUiNoise)
	}

	return accepted()
}
