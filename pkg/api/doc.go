// Package api exposes the crewdesk HTTP surface: signup and login, profiles,
// projects, assignments, documents, object transfer, API tokens, and the
// admin audit view.
//
// Handlers never decide permissions. Each one extracts the caller identity
// placed in the context by the auth middleware and passes it to pkg/store or
// the object gateway, where the policy engine runs inside the same database
// transaction as the guarded statement. The handler's only authorization job
// is translating the resulting errors to status codes via
// httputil.WriteDomainError.
package api
