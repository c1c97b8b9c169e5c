// Package dedupe fingerprints signals and remembers them long enough to
// block duplicates.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/trade"
)

// Fingerprint identifies a signal for idempotency purposes. Two
// evaluations of the same bar produce the same fingerprint regardless of
// when they run: the hash is keyed on the bar close time, never on the
// wall clock, truncated to the minute.
func Fingerprint(symbol, timeframe string, action trade.Action, barClose time.Time, scores []opinion.ModuleScore) string {
	var b strings.Builder
	b.WriteString(symbol)
	b.WriteByte('|')
	b.WriteString(timeframe)
	b.WriteByte('|')
	b.WriteString(string(action))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(barClose.UTC().Truncate(time.Minute).Unix(), 10))
	b.WriteByte('|')
	b.WriteString(scoresDigest(scores))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// scoresDigest renders module scores in a canonical order so the digest is
// independent of input ordering.
func scoresDigest(scores []opinion.ModuleScore) string {
	parts := make([]string, 0, len(scores))
	for _, s := range scores {
		parts = append(parts, fmt.Sprintf("%s:%s",
			s.Module, strconv.FormatFloat(s.Score, 'f', 4, 64)))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
