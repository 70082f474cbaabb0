package reconcile

import (
	"fmt"
	"math"
	"strings"

	"spendwise/internal/store"
)

// suspiciousKeywords flag merchants associated with fraud patterns.
var suspiciousKeywords = []string{
	"pawn",
	"crypto atm",
	"casino",
	"gambling",
	"betting",
}

// outlierFactor flags expenses far above the category's mean.
const outlierFactor = 5.0

// roundAmountStep flags suspiciously round withdrawals.
const roundAmountStep = 1000.0

// Score rates one ledger row for suspicion. The rules are fixed so a
// replayed cycle scores identically; the LLM only phrases the alert
// afterwards. categoryAvg is the mean absolute expense of the row's
// category (0 when unknown).
func Score(tx store.Transaction, categoryAvg float64) (int, []string) {
	score := 0
	var reasons []string

	haystack := strings.ToLower(tx.Description + " " + tx.Merchant)
	for _, kw := range suspiciousKeywords {
		if strings.Contains(haystack, kw) {
			score++
			reasons = append(reasons, fmt.Sprintf("merchant matches %q", kw))
			break
		}
	}

	amount := math.Abs(tx.Amount)
	if tx.Amount < 0 && categoryAvg > 0 && amount >= outlierFactor*categoryAvg {
		score++
		reasons = append(reasons, fmt.Sprintf("%.2f is at least %.0fx the category average %.2f", amount, outlierFactor, categoryAvg))
	}

	if tx.Amount < 0 && amount >= roundAmountStep && math.Mod(amount, roundAmountStep) == 0 {
		score++
		reasons = append(reasons, fmt.Sprintf("round amount %.0f", amount))
	}

	return score, reasons
}
