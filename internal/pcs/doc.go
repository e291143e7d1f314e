// Package pcs holds the port-call status domain: vessel and alert records as
// delivered by the PCS webhook, and the pure functions that derive dashboard
// aggregates from them (categories, KPIs, alert summaries, reports).
//
// Nothing in this package performs I/O or keeps shared state, so every
// function is safe to call concurrently on the same snapshot.
package pcs
