// Package resilience provides a circuit breaker for calls to external
// services, primarily the Copernicus Climate Data Store API.
//
// The breaker follows the standard closed / open / half-open state machine:
// failures in the closed state are counted per generation, a configurable
// predicate trips the breaker open, and after a timeout a limited number of
// probe requests decide whether to close again.
package resilience
