package llm

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestParseAssistantTurn(t *testing.T) {
	raw := `{
		"reply": "Added the approval step.",
		"workflow_delta": {
			"new_steps": [{"temp_id": "s1", "name": "Approve invoice"}],
			"new_links": [{"from_step": "s1", "to_step": "0b86cd19-6ee1-4a5c-9f39-c902d58b2add"}]
		}
	}`

	turn, err := Parse[AssistantTurn](context.Background(), testLogger(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Added the approval step.", turn.Reply)
	require.NotNil(t, turn.WorkflowDelta)
	assert.False(t, turn.WorkflowDelta.Empty())
	assert.Equal(t, "s1", turn.WorkflowDelta.NewSteps[0].TempID)
	assert.Equal(t, "s1", turn.WorkflowDelta.NewLinks[0].FromStep)
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse[AssistantTurn](context.Background(), testLogger(), "I cannot answer in JSON")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
}

func TestParseRejectsMissingRequiredFields(t *testing.T) {
	// reply is required
	_, err := Parse[AssistantTurn](context.Background(), testLogger(), `{"workflow_delta": {}}`)
	require.Error(t, err)
}

func TestParseRejectsOutOfRangeScores(t *testing.T) {
	raw := `{"opportunities": [{"title": "Automate intake", "impact": 7, "feasibility": 3, "effort": 2}]}`
	_, err := Parse[OpportunityScan](context.Background(), testLogger(), raw)
	require.Error(t, err)
}

func TestParseOpportunityScan(t *testing.T) {
	raw := `{"opportunities": [
		{"title": "Automate intake", "summary": "OCR the forms", "impact": 4, "feasibility": 3, "effort": 2},
		{"title": "Auto-route approvals", "impact": 3, "feasibility": 4, "effort": 1}
	]}`

	scan, err := Parse[OpportunityScan](context.Background(), testLogger(), raw)
	require.NoError(t, err)
	require.Len(t, scan.Opportunities, 2)
	assert.Equal(t, "Automate intake", scan.Opportunities[0].Title)
	assert.Equal(t, 4, scan.Opportunities[0].Impact)
}

func TestWorkflowDeltaEmpty(t *testing.T) {
	var nilDelta *WorkflowDelta
	assert.True(t, nilDelta.Empty())
	assert.True(t, (&WorkflowDelta{}).Empty())
	assert.False(t, (&WorkflowDelta{NewSteps: []NewStep{{TempID: "s1", Name: "x"}}}).Empty())
}
