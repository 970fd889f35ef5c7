package mcptools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldermed/psurd/internal/agentrun"
	"github.com/caldermed/psurd/internal/config"
	"github.com/caldermed/psurd/internal/events"
	"github.com/caldermed/psurd/internal/golden"
	"github.com/caldermed/psurd/internal/ingest"
	"github.com/caldermed/psurd/internal/provider"
	"github.com/caldermed/psurd/internal/qc"
	"github.com/caldermed/psurd/internal/template"
	"github.com/caldermed/psurd/internal/workflow"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, in agentrun.RunInput) (agentrun.Draft, error) {
	return agentrun.Draft{SectionID: in.Section.ID, Content: "Draft.", Words: 1}, nil
}

func (stubRunner) Ask(_ context.Context, agent config.AgentConfig, _ provider.Resolution, _ golden.Snapshot, question string) (string, error) {
	return agent.Name + " says: noted", nil
}

type approveAll struct{}

func (approveAll) Review(context.Context, qc.CheckInput) (qc.Verdict, error) {
	return qc.Verdict{Approved: true}, nil
}

func newService(t *testing.T) (*WorkflowService, *workflow.Coordinator) {
	t.Helper()
	coord, err := workflow.NewCoordinator(workflow.Config{
		Template: &template.Template{
			ID:   "test_tpl",
			Name: "Test Template",
			Sections: []template.SectionSpec{
				{ID: "C", Number: 3, Name: "Sales and Distribution", Agent: "Raj"},
			},
		},
		Resolver: provider.NewResolver(provider.CredentialTable{
			provider.VendorOpenAI: {APIKey: "sk-test", DefaultModel: "gpt-5.2"},
		}),
		Runner:      stubRunner{},
		Reviewer:    approveAll{},
		Broadcaster: events.NewBroadcaster(256),
	})
	require.NoError(t, err)
	return NewWorkflowService(coord), coord
}

func ingestedSession(t *testing.T, coord *workflow.Coordinator) string {
	t.Helper()
	sess, err := coord.CreateSession(workflow.Metadata{DeviceName: "AcmeFlow"})
	require.NoError(t, err)
	_, err = coord.Ingest(context.Background(), sess.ID, ingest.Facts{
		DeviceName:  "AcmeFlow Infusion Pump",
		UDIDI:       "08717648200274",
		UnitsByYear: map[int]int{2025: 12847},
	})
	require.NoError(t, err)
	return sess.ID
}

func TestGetWorkflowState_SingleSession(t *testing.T) {
	svc, coord := newService(t)
	id := ingestedSession(t, coord)

	_, out, err := svc.GetWorkflowState(context.Background(), nil, GetWorkflowStateInput{SessionID: id})
	require.NoError(t, err)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, id, out.Sessions[0].SessionID)
	assert.Equal(t, "validating", out.Sessions[0].Status)
}

func TestGetWorkflowState_ListsAllSessions(t *testing.T) {
	svc, coord := newService(t)
	ingestedSession(t, coord)
	ingestedSession(t, coord)

	_, out, err := svc.GetWorkflowState(context.Background(), nil, GetWorkflowStateInput{})
	require.NoError(t, err)
	assert.Len(t, out.Sessions, 2)
}

func TestGetWorkflowState_UnknownSession(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.GetWorkflowState(context.Background(), nil, GetWorkflowStateInput{SessionID: "nope"})
	assert.Error(t, err)
}

func TestGetMasterContext_ReportsFrozenKeys(t *testing.T) {
	svc, coord := newService(t)
	id := ingestedSession(t, coord)

	_, out, err := svc.GetMasterContext(context.Background(), nil, GetMasterContextInput{SessionID: id})
	require.NoError(t, err)

	var denom *ContextFact
	for i := range out.Facts {
		if out.Facts[i].Key == golden.KeyExposureDenominator {
			denom = &out.Facts[i]
		}
	}
	require.NotNil(t, denom)
	assert.Equal(t, 12847, denom.Value)
	assert.True(t, denom.Frozen)
	assert.Equal(t, "calculated", denom.Provenance)
}

func TestGetMasterContext_RequiresSessionID(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.GetMasterContext(context.Background(), nil, GetMasterContextInput{})
	assert.Error(t, err)
}

func TestAskAgent_RoutesToAgent(t *testing.T) {
	svc, coord := newService(t)
	id := ingestedSession(t, coord)
	require.NoError(t, coord.Start(id, false))

	_, out, err := svc.AskAgent(context.Background(), nil, AskAgentInput{
		SessionID: id, Agent: "Statler", Question: "How many units?",
	})
	if err != nil {
		// The one-section session may already have completed, which
		// refuses ad-hoc questions.
		assert.ErrorIs(t, err, workflow.ErrInvalidState)
		return
	}
	assert.Equal(t, "Statler says: noted", out.Answer)
}

func TestSetOverride_FreezesKey(t *testing.T) {
	svc, coord := newService(t)
	id := ingestedSession(t, coord)

	_, out, err := svc.SetOverride(context.Background(), nil, SetOverrideInput{
		SessionID: id, Key: golden.KeyComplaintsClosed, Value: 41, Actor: "qa-lead",
	})
	require.NoError(t, err)
	assert.True(t, out.Frozen)

	require.Eventually(t, func() bool {
		st, err := coord.GetState(id)
		return err == nil && st.MasterContext[golden.KeyComplaintsClosed].Frozen
	}, time.Second, 10*time.Millisecond)
}
