// Package intent classifies customer messages into insurance-support
// intents with a weighted whole-word keyword scorer. The classifier decides
// whether the chat layer answers directly (small talk) or runs retrieval.
package intent

import (
	"sort"
	"strings"
	"unicode"
)

// Intent labels, from most to least specific. The order breaks score ties:
// a specific intent always beats GeneralInfo at equal score.
const (
	Quote       = "quote"
	Claim       = "claim"
	Accident    = "accident"
	Coverage    = "coverage"
	Greeting    = "greeting"
	Thanks      = "thanks"
	Goodbye     = "goodbye"
	GeneralInfo = "general_info"
)

// Result is one classification outcome.
type Result struct {
	// Intent is the winning label.
	Intent string `json:"intent"`

	// Confidence is the matched weight normalized by the intent table's
	// total weight, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Matched lists the keywords that contributed to the score.
	Matched []string `json:"matched_keywords,omitempty"`
}

// keywordTables maps each intent to its weighted keywords. Multi-word keys
// match as phrases inside the normalized text.
var keywordTables = map[string]map[string]float64{
	Quote: {
		"quote": 3, "quotation": 3, "estimate": 2.5, "price": 2,
		"cost": 2, "premium": 2.5, "how much": 2.5, "pricing": 2,
	},
	Claim: {
		"claim": 3, "reimbursement": 2.5, "refund": 2, "compensation": 2.5,
		"file a claim": 3, "claim status": 3, "settlement": 2,
	},
	Accident: {
		"accident": 3, "crash": 3, "collision": 2.5, "hit": 1.5,
		"damaged": 2, "injury": 2.5, "emergency": 2, "tow": 2,
	},
	Coverage: {
		"coverage": 3, "covered": 2.5, "policy": 2, "deductible": 2.5,
		"liability": 2, "rca": 2.5, "theft": 2, "fire": 1.5,
		"exclusion": 2.5, "insured": 2,
	},
	Greeting: {
		"hello": 3, "hi": 3, "good morning": 3, "good afternoon": 3,
		"good evening": 3, "hey": 2.5,
	},
	Thanks: {
		"thanks": 3, "thank you": 3, "appreciated": 2, "grateful": 2,
	},
	Goodbye: {
		"bye": 3, "goodbye": 3, "see you": 2.5, "have a nice day": 2.5,
	},
	GeneralInfo: {
		"what": 1, "how": 1, "when": 1, "where": 1, "which": 1,
		"information": 1.5, "info": 1.5, "help": 1.5, "question": 1.5,
	},
}

// genericInterrogatives are low-signal question words. A classification
// supported only by these is damped, since almost every question contains
// one.
var genericInterrogatives = map[string]bool{
	"what": true, "how": true, "when": true, "where": true, "which": true,
}

// genericDamping halves the confidence of a match built purely from
// interrogatives.
const genericDamping = 0.5

// specificity orders intents for tie-breaking, most specific first.
var specificity = []string{Quote, Claim, Accident, Coverage, Greeting, Thanks, Goodbye, GeneralInfo}

// Analyzer scores messages against the keyword tables. Stateless and safe
// for concurrent use.
type Analyzer struct{}

// NewAnalyzer returns an Analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Analyze classifies one message. A message matching nothing comes back as
// GeneralInfo with confidence 0.
func (a *Analyzer) Analyze(message string) Result {
	text := normalize(message)
	if text == "" {
		return Result{Intent: GeneralInfo}
	}
	padded := " " + text + " "

	best := Result{Intent: GeneralInfo}
	bestRank := len(specificity)
	for rank, intent := range specificity {
		table := keywordTables[intent]

		var matchedWeight, totalWeight float64
		var matched []string
		for keyword, weight := range table {
			totalWeight += weight
			if strings.Contains(padded, " "+keyword+" ") {
				matchedWeight += weight
				matched = append(matched, keyword)
			}
		}
		if matchedWeight == 0 {
			continue
		}
		sort.Strings(matched)

		confidence := matchedWeight / totalWeight
		if allGeneric(matched) {
			confidence *= genericDamping
		}

		// Higher score wins; at equal score the more specific intent wins.
		if confidence > best.Confidence || (confidence == best.Confidence && rank < bestRank) {
			best = Result{Intent: intent, Confidence: confidence, Matched: matched}
			bestRank = rank
		}
	}
	return best
}

func allGeneric(matched []string) bool {
	for _, k := range matched {
		if !genericInterrogatives[k] {
			return false
		}
	}
	return len(matched) > 0
}

// normalize lowercases the message and collapses punctuation to spaces so
// keyword matching is whole-word.
func normalize(message string) string {
	var sb strings.Builder
	sb.Grow(len(message))
	for _, r := range strings.ToLower(message) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// IsSmallTalk reports whether an intent is answered directly without
// retrieval.
func IsSmallTalk(intent string) bool {
	switch intent {
	case Greeting, Thanks, Goodbye:
		return true
	}
	return false
}
