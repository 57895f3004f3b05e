package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"requisition/internal/model"
	"requisition/internal/workflow"
)

type fakeDirectory struct {
	users []model.User
	err   error
}

func (f *fakeDirectory) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.users {
		if f.users[i].ID == id {
			return &f.users[i], nil
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeDirectory) FindByRoles(_ context.Context, roles []model.Role) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		for _, r := range roles {
			if u.HasRole(r) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeDirectory) FindSupervisors(_ context.Context, dept uuid.UUID) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.DepartmentID == dept && (u.IsSupervisor() || u.HasRole(model.RoleSupervisor)) {
			out = append(out, u)
		}
	}
	return out, nil
}

func person(name string, dept uuid.UUID, level int, roles ...model.Role) model.User {
	u := model.User{ID: uuid.New(), FullName: name, Email: strings.ToLower(name) + "@example.org", DepartmentID: dept, Level: level}
	for _, r := range roles {
		u.Roles = append(u.Roles, model.UserRole{Role: r})
	}
	return u
}

func recipientIDs(rs []Recipient) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.UserID)
	}
	return ids
}

func TestWorkflowRecipients(t *testing.T) {
	deptA, deptB := uuid.New(), uuid.New()
	requester := person("Ama", deptA, 8)
	supA := person("Kwame", deptA, 14)
	supB := person("Efua", deptB, 15)
	so := person("Yaw", deptB, 10, model.RoleSO)
	dgs := person("Adjoa", deptB, 20, model.RoleDGS)
	ddgs := person("Kojo", deptB, 16, model.RoleDDGS)

	dir := &fakeDirectory{users: []model.User{requester, supA, supB, so, dgs, ddgs}}
	r := NewWorkflowRecipients(dir, workflow.NewResolver(nil))

	event := func(stage model.Stage, status model.Status, actor uuid.UUID) *Event {
		req := &model.Request{ID: uuid.New(), Type: model.RequestTypeStore, RequesterID: requester.ID,
			DepartmentID: deptA, WorkflowStage: stage, Status: status}
		return NewEvent(TypeRequestProgressed, req, actor, nil)
	}

	t.Run("supervisor stage reaches own department and dgs", func(t *testing.T) {
		got, err := r.Recipients(context.Background(), event(model.StageSupervisorReview, model.StatusPending, requester.ID))
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{supA.ID, dgs.ID}, recipientIDs(got))
	})

	t.Run("fulfillment reaches operators and requester", func(t *testing.T) {
		got, err := r.Recipients(context.Background(), event(model.StageFulfillment, model.StatusApproved, dgs.ID))
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{requester.ID, so.ID}, recipientIDs(got))
	})

	t.Run("terminal status reaches requester only", func(t *testing.T) {
		got, err := r.Recipients(context.Background(), event(model.StageSOReview, model.StatusRejected, so.ID))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{requester.ID}, recipientIDs(got))
	})

	t.Run("directory failure is retryable", func(t *testing.T) {
		broken := NewWorkflowRecipients(&fakeDirectory{err: errors.New("db down")}, workflow.NewResolver(nil))
		_, err := broken.Recipients(context.Background(), event(model.StageSOReview, model.StatusPending, so.ID))
		assert.Error(t, err)
	})
}

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestEmailChannel(t *testing.T) {
	mailer := &fakeMailer{}
	ch := NewEmailChannelWithSender(mailer, "requests@example.org")
	evt := testEvent(TypeRequestRejected)
	evt.Payload = map[string]interface{}{"reason": "over budget"}

	require.NoError(t, ch.Send(context.Background(), Recipient{UserID: uuid.New(), Email: "ama@example.org", FullName: "Ama"}, evt))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"ama@example.org"}, mailer.sent[0].GetHeader("To"))
	assert.Equal(t, []string{evt.Subject()}, mailer.sent[0].GetHeader("Subject"))

	// no address, nothing to send
	require.NoError(t, ch.Send(context.Background(), Recipient{UserID: uuid.New()}, evt))
	assert.Len(t, mailer.sent, 1)

	mailer.err = errors.New("connection refused")
	assert.Error(t, ch.Send(context.Background(), Recipient{UserID: uuid.New(), Email: "x@example.org"}, evt))
}

type fakeHub struct {
	messages map[uuid.UUID][][]byte
}

func (h *fakeHub) SendToUser(id uuid.UUID, msg []byte) int {
	if h.messages == nil {
		h.messages = map[uuid.UUID][][]byte{}
	}
	h.messages[id] = append(h.messages[id], msg)
	return 1
}

func TestWebsocketChannel(t *testing.T) {
	hub := &fakeHub{}
	ch := NewWebsocketChannel(hub)
	to := Recipient{UserID: uuid.New()}
	evt := testEvent(TypeRequestFulfilled)

	require.NoError(t, ch.Send(context.Background(), to, evt))
	require.Len(t, hub.messages[to.UserID], 1)
	assert.Contains(t, string(hub.messages[to.UserID][0]), `"type":"request.fulfilled"`)
	assert.Contains(t, string(hub.messages[to.UserID][0]), evt.RequestID.String())
}
