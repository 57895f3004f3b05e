package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"requisition/internal/model"
	"requisition/internal/workflow"
)

// UserDirectory is the slice of the user store recipient resolution needs
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByRoles(ctx context.Context, roles []model.Role) ([]model.User, error)
	FindSupervisors(ctx context.Context, departmentID uuid.UUID) ([]model.User, error)
}

// WorkflowRecipients notifies the requester plus everyone who now has the request
// in their pending feed. The acting user is never notified of their own action.
type WorkflowRecipients struct {
	users    UserDirectory
	resolver *workflow.Resolver
}

func NewWorkflowRecipients(users UserDirectory, resolver *workflow.Resolver) *WorkflowRecipients {
	return &WorkflowRecipients{users: users, resolver: resolver}
}

func (r *WorkflowRecipients) Recipients(ctx context.Context, evt *Event) ([]Recipient, error) {
	var out []Recipient
	seen := map[uuid.UUID]bool{evt.ActorID: true}
	add := func(u *model.User) {
		if seen[u.ID] {
			return
		}
		seen[u.ID] = true
		out = append(out, Recipient{UserID: u.ID, Email: u.Email, FullName: u.FullName})
	}

	requester, err := r.users.GetByID(ctx, evt.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load requester %s: %w", evt.RequesterID, err)
	}
	add(requester)

	snapshot := evt.Snapshot()
	roles, supervisors := r.resolver.Candidates(evt.RequestType, evt.Stage)
	candidates, err := r.users.FindByRoles(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to load approvers: %w", err)
	}
	if supervisors {
		sup, err := r.users.FindSupervisors(ctx, evt.DepartmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load supervisors: %w", err)
		}
		candidates = append(candidates, sup...)
	}

	for i := range candidates {
		u := &candidates[i]
		if seen[u.ID] {
			continue
		}
		if r.resolver.BuildPendingQuery(u, evt.RequestType).Matches(snapshot) {
			add(u)
		}
	}
	return out, nil
}
