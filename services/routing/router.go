// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing classifies user queries onto backend destinations by
// counting configured signal phrases.
//
// The router is deliberately dumb: no model call, no state, no randomness.
// For a fixed signal configuration the same query always yields the same
// decision, which keeps routing testable and tunable through config alone.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/genieverse/services/config"
)

var routingTracer = otel.Tracer("genieverse.routing")

// Destination names a backend a query can be routed to.
type Destination string

const (
	// DestinationVisualization serves chart-producing queries.
	DestinationVisualization Destination = "visualization"

	// DestinationData serves tabular and aggregate queries.
	DestinationData Destination = "data"

	// DestinationDashboard serves multi-chart dashboard requests.
	DestinationDashboard Destination = "dashboard"

	// DestinationGeneral is the conversational fallback when no signal
	// matches.
	DestinationGeneral Destination = "general"
)

// Decision is the outcome of routing one query.
type Decision struct {
	// Destination is the selected backend.
	Destination Destination `json:"destination"`

	// Matched maps each destination to the distinct signals found in the
	// query. Destinations with no matches are omitted.
	Matched map[Destination][]string `json:"matched,omitempty"`

	// Confidence is the winning destination's share of all signal matches,
	// in [0, 1]. Zero when no signal matched.
	Confidence float64 `json:"confidence"`

	// Reason is a short human-readable explanation for logs and traces.
	Reason string `json:"reason"`
}

// compiledSignal is a pre-tokenized signal phrase.
type compiledSignal struct {
	phrase string
	words  []string
}

// Router scores queries against per-destination signal sets.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type Router struct {
	logger *slog.Logger

	// destinations in deterministic evaluation order.
	destinations []Destination
	signals      map[Destination][]compiledSignal
}

// NewRouter builds a Router from a signal configuration.
//
// # Inputs
//   - cfg: Validated signal configuration. Must be non-nil.
//   - logger: Structured logger. Nil falls back to slog.Default().
func NewRouter(cfg *config.SignalConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, 0, len(cfg.Destinations))
	for name := range cfg.Destinations {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &Router{
		logger:  logger,
		signals: make(map[Destination][]compiledSignal, len(names)),
	}
	for _, name := range names {
		dest := Destination(name)
		r.destinations = append(r.destinations, dest)
		for _, phrase := range cfg.SignalsFor(name) {
			r.signals[dest] = append(r.signals[dest], compiledSignal{
				phrase: phrase,
				words:  tokenize(phrase),
			})
		}
	}
	return r
}

// Route classifies a query.
//
// # Description
//
// Counts how many distinct signals from each destination's set occur in the
// query. The destination with the strictly highest count wins. A tie between
// destinations with nonzero counts resolves to the data destination, since a
// tabular answer is useful for every mixed-intent query while a chart is
// not. A query matching no signal routes to the general destination.
//
// # Inputs
//   - ctx: Context for tracing. Routing never blocks.
//   - query: The raw user query. May be empty.
//
// # Outputs
//   - Decision: The routing decision. Deterministic for a fixed config.
func (r *Router) Route(ctx context.Context, query string) Decision {
	_, span := routingTracer.Start(ctx, "routing.Route",
		trace.WithAttributes(attribute.Int("query.length", len(query))))
	defer span.End()

	words := tokenize(query)
	matched := make(map[Destination][]string)
	for _, dest := range r.destinations {
		for _, sig := range r.signals[dest] {
			if containsPhrase(words, sig.words) {
				matched[dest] = append(matched[dest], sig.phrase)
			}
		}
	}

	decision := resolve(r.destinations, matched)

	span.SetAttributes(
		attribute.String("routing.destination", string(decision.Destination)),
		attribute.Float64("routing.confidence", decision.Confidence),
	)
	routeTotal.WithLabelValues(string(decision.Destination)).Inc()
	signalMatches.Observe(float64(totalMatches(matched)))

	r.logger.Debug("Routed query",
		slog.String("destination", string(decision.Destination)),
		slog.Float64("confidence", decision.Confidence),
		slog.String("reason", decision.Reason),
	)
	return decision
}

// resolve picks the winning destination from the match table.
func resolve(order []Destination, matched map[Destination][]string) Decision {
	total := totalMatches(matched)
	if total == 0 {
		return Decision{
			Destination: DestinationGeneral,
			Confidence:  0,
			Reason:      "no routing signals matched",
		}
	}

	best := 0
	tied := make([]Destination, 0, len(order))
	for _, dest := range order {
		n := len(matched[dest])
		switch {
		case n > best:
			best = n
			tied = tied[:0]
			tied = append(tied, dest)
		case n == best && n > 0:
			tied = append(tied, dest)
		}
	}

	winner := tied[0]
	reason := fmt.Sprintf("%d distinct %s signal(s), %d total", best, winner, total)
	if len(tied) > 1 {
		// Mixed intent: a table serves every tied destination's need, a
		// chart or dashboard only its own.
		winner = DestinationData
		reason = fmt.Sprintf("tie between %s at %d signal(s) each; defaulting to data", joinDests(tied), best)
	}

	return Decision{
		Destination: winner,
		Matched:     matched,
		// The winner's own share, not the tied set's: when a tie falls to
		// data, confidence reflects how many signals data itself matched,
		// which is zero if it was not part of the tie.
		Confidence: float64(len(matched[winner])) / float64(total),
		Reason:     reason,
	}
}

func totalMatches(matched map[Destination][]string) int {
	n := 0
	for _, sigs := range matched {
		n += len(sigs)
	}
	return n
}

func joinDests(dests []Destination) string {
	parts := make([]string, len(dests))
	for i, d := range dests {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

// tokenize lower-cases text and splits it into words on any non-alphanumeric
// rune, so punctuation never hides a signal.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// containsPhrase reports whether phrase occurs in words as a contiguous
// subsequence. Word-boundary matching keeps "chart" from firing on
// "charter".
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, w := range phrase {
			if words[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}
