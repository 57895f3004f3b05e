package service

import (
	"context"
	"fmt"
	"sort"

	"requisition/internal/model"
	"requisition/internal/repository"
	"requisition/internal/workflow"
)

// ApprovalFeed lists the requests waiting on one user's action
type ApprovalFeed struct {
	requests repository.RequestRepository
	resolver *workflow.Resolver
}

func NewApprovalFeed(requests repository.RequestRepository, resolver *workflow.Resolver) *ApprovalFeed {
	return &ApprovalFeed{requests: requests, resolver: resolver}
}

// List runs the user's pending predicate for t, drops fulfillment requests with nothing left
// to issue and orders by submission time (oldest first unless newestFirst). Ties break on id
// so an operator working a backlog always sees the same order.
func (f *ApprovalFeed) List(ctx context.Context, user *model.User, t model.RequestType, newestFirst bool) ([]model.Request, error) {
	q := f.resolver.BuildPendingQuery(user, t)
	if q.Empty() {
		return []model.Request{}, nil
	}

	rows, err := f.requests.ListPending(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending requests: %w", err)
	}

	feed := make([]model.Request, 0, len(rows))
	for _, r := range rows {
		if r.WorkflowStage == model.StageFulfillment && !r.HasOutstandingItems() {
			continue
		}
		feed = append(feed, r)
	}

	sort.SliceStable(feed, func(i, j int) bool {
		a, b := feed[i], feed[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			if newestFirst {
				return a.SubmittedAt.After(b.SubmittedAt)
			}
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return feed, nil
}
