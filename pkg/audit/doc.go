// Package audit records security-relevant events in PostgreSQL: denied
// authorization decisions, role changes, token lifecycle, and data mutations.
//
// The trail has two producers. Handlers write data and auth events directly
// through the Logger interface. Denied policy decisions arrive through
// DenialObserver, which is registered on the authorization engine so the
// policy code never imports this package.
//
// Rows age out on a retention schedule; the janitor calls DeleteBefore with
// the configured cutoff.
package audit
