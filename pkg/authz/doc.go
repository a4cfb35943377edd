// Package authz implements row-level authorization for crewdesk.
//
// # Overview
//
// Every data access carries an explicit caller identity. The Resolver maps
// that identity to the role stored on its profile, the relationship
// predicates (IsAssigned, IsLead, LeadsAnyProject) answer point questions
// against the resource store, and the Engine composes both into one rule per
// (resource, operation) pair.
//
//	decision, err := engine.Authorize(ctx, tx, callerID,
//		authz.ResourceAssignment, authz.OperationInsert,
//		authz.Target{ProjectID: projectID})
//
// Rules short-circuit left to right with role comparisons ahead of
// relationship lookups, since the latter cost a store query. Unmatched
// (resource, operation) pairs deny; there is no partial allow.
//
// # Consistency
//
// The engine holds no database handle of its own. Callers pass the Querier
// the guarded operation will run on; handing it the transaction lets the
// predicate reads and the final write observe a single snapshot.
//
// # Errors
//
// ErrUnauthenticated (no profile), ErrNotFound, ErrConflict, and
// InvalidValueError are distinguishable with errors.Is/errors.As. A false
// rule is not an error at this layer: Authorize returns a Decision, and
// Require converts a deny into a DeniedError for call sites that want
// control flow.
package authz
