package bybit

import (
	"context"
	"log/slog"

	"ordertrack-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Candidate is a DOM subtree considered a possible single-order row,
// paired with its rendered text so classification is only done once.
type Candidate struct {
	Selection *goquery.Selection
	Text      string
}

// narrow, structurally likely row containers. tried in order, the scan
// stops at the first selector that yields a classified hit so the same
// logical row is not reprocessed under nested generalizations.
var prioritySelectors = []string{
	"tbody tr",
	".ant-table-tbody > tr",
	"tr:not(:first-child)",
}

// broad, pattern-based containers. overlap between these is expected,
// records are deduplicated later by order id rather than DOM identity.
var fallbackSelectors = []string{
	".ant-table-row",
	"[data-row-key]",
	".order-row",
	".trade-row",
	".history-row",
	`[class*="order"]:not([class*="button"]):not([class*="header"])`,
	`[class*="trade"]:not([class*="button"]):not([class*="header"])`,
	".table-row",
	`[data-testid*="order"]`,
	`[data-testid*="trade"]`,
	".rc-table-row",
	`[class*="list-item"]`,
	`[class*="card"]`,
	".bybit-table-row",
	`[class*="history"]`,
	`[class*="transaction"]`,
	".table-body-row",
	`[role="row"]`,
	`div[class*="row"]`,
	`div[class*="item"]`,
	`[class*="entry"]`,
	`[class*="record"]`,
}

func classifiedMatches(ctx context.Context, doc *goquery.Document, selector string) []Candidate {
	var out []Candidate
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		text := htmlutil.RowText(sel)
		c := Classify(text)
		if !c.Accepted {
			slog.DebugContext(ctx, "rejected candidate",
				"selector", selector,
				"reason", c.Reason,
				"length", len(text),
			)
			return
		}
		out = append(out, Candidate{Selection: sel, Text: text})
	})
	return out
}

// Candidates enumerates plausible order rows in the document. The
// priority tier is consulted first and wins outright as soon as one of
// its selectors produces a classified hit. Only when the whole priority
// tier comes up empty is the fallback tier evaluated, exhaustively.
func Candidates(ctx context.Context, doc *goquery.Document) []Candidate {
	for _, selector := range prioritySelectors {
		matches := classifiedMatches(ctx, doc, selector)
		if len(matches) > 0 {
			slog.DebugContext(ctx, "priority selector hit",
				"selector", selector,
				"count", len(matches),
			)
			return matches
		}
	}

	var out []Candidate
	for _, selector := range fallbackSelectors {
		out = append(out, classifiedMatches(ctx, doc, selector)...)
	}
	return out
}

// AllCandidates is the wide sweep used by backfill: both tiers are
// evaluated unconditionally and the union is taken, with elements
// matched by overlapping selectors processed once (DOM identity).
func AllCandidates(ctx context.Context, doc *goquery.Document) []Candidate {
	seen := map[*html.Node]bool{}
	var out []Candidate

	collect := func(matches []Candidate) {
		for _, m := range matches {
			if len(m.Selection.Nodes) == 0 {
				continue
			}
			node := m.Selection.Nodes[0]
			if seen[node] {
				continue
			}
			seen[node] = true
			out = append(out, m)
		}
	}

	for _, selector := range prioritySelectors {
		collect(classifiedMatches(ctx, doc, selector))
	}
	for _, selector := range fallbackSelectors {
		collect(classifiedMatches(ctx, doc, selector))
	}
	return out
}
