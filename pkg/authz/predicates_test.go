package authz

import (
	"context"
	"testing"
)

func TestPredicatesMissingProjectReturnFalse(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	seedProfile(t, db, "lead-1", RoleProjectLead)
	lead := "lead-1"
	existing := seedProject(t, db, "rollout", ProjectActive, "lead-1", &lead)
	seedAssignment(t, db, existing, "lead-1")

	// A project id that does not exist yields false from both predicates,
	// never an error. The enclosing rule decides what a missing target means.
	const missing = int64(424242)

	assigned, err := IsAssigned(ctx, db, "lead-1", missing)
	if err != nil {
		t.Fatalf("IsAssigned errored on missing project: %v", err)
	}
	if assigned {
		t.Error("IsAssigned = true for a nonexistent project")
	}

	isLead, err := IsLead(ctx, db, "lead-1", missing)
	if err != nil {
		t.Fatalf("IsLead errored on missing project: %v", err)
	}
	if isLead {
		t.Error("IsLead = true for a nonexistent project")
	}

	// The same caller still matches on the project that does exist
	assigned, err = IsAssigned(ctx, db, "lead-1", existing)
	if err != nil {
		t.Fatalf("IsAssigned errored: %v", err)
	}
	if !assigned {
		t.Error("IsAssigned = false for an existing assignment")
	}
}
