package worker

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/searchprovider"
)

// registerActivities registers the activity names DiscoveryWorkflow calls so
// that env.OnActivity(name, ...) mocks can resolve them; the underlying
// *Activities implementation is never invoked because the mocks intercept
// every call.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	activities := &Activities{}
	env.RegisterActivityWithOptions(activities.UpdateRunStatus, activity.RegisterOptions{Name: ActivityUpdateRunStatus})
	env.RegisterActivityWithOptions(activities.Search, activity.RegisterOptions{Name: ActivitySearch})
	env.RegisterActivityWithOptions(activities.Extract, activity.RegisterOptions{Name: ActivityExtract})
	env.RegisterActivityWithOptions(activities.ScoreDedup, activity.RegisterOptions{Name: ActivityScoreDedup})
	env.RegisterActivityWithOptions(activities.Persist, activity.RegisterOptions{Name: ActivityPersist})
}

type workflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
}

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(workflowTestSuite))
}

func testInput() DiscoveryWorkflowInput {
	return DiscoveryWorkflowInput{
		Context:           model.DiscoveryContext{RunID: "run-1", ProjectID: "proj-1", OrgID: "org-1"},
		MaxAttempts:       1,
		BackoffSeconds:    1,
		RunTimeoutMinutes: 10,
	}
}

func (s *workflowTestSuite) TestHappyPath() {
	env := s.NewTestWorkflowEnvironment()
	registerActivities(env)
	in := testInput()

	results := []searchprovider.Result{{URL: "https://kuda.com"}}
	basics := []model.BasicCompetitor{{Name: "Kuda", Website: "https://kuda.com"}}
	scored := []model.Candidate{{Basic: basics[0], Score: 90}}

	var statuses []model.RunStatus
	env.OnActivity(ActivityUpdateRunStatus, mock.Anything, "run-1", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { statuses = append(statuses, args.Get(2).(model.RunStatus)) }).
		Return(nil).Times(3)
	env.OnActivity(ActivitySearch, mock.Anything, in.Context).Return(results, nil)
	env.OnActivity(ActivityExtract, mock.Anything, in.Context, results).Return(basics, nil)
	env.OnActivity(ActivityScoreDedup, mock.Anything, in.Context, basics).Return(scored, nil)
	env.OnActivity(ActivityPersist, mock.Anything, in.Context, scored).Return([]string{"comp-1"}, nil)

	env.ExecuteWorkflow(DiscoveryWorkflow, in)

	s.True(env.IsWorkflowCompleted())
	require.NoError(s.T(), env.GetWorkflowError())
	s.Equal([]model.RunStatus{model.RunSearching, model.RunExtracting, model.RunCompleted}, statuses)
}

func (s *workflowTestSuite) TestZeroResultsCompletesWithoutExtracting() {
	env := s.NewTestWorkflowEnvironment()
	registerActivities(env)
	in := testInput()

	var statuses []model.RunStatus
	env.OnActivity(ActivityUpdateRunStatus, mock.Anything, "run-1", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { statuses = append(statuses, args.Get(2).(model.RunStatus)) }).
		Return(nil).Times(2)
	env.OnActivity(ActivitySearch, mock.Anything, in.Context).Return([]searchprovider.Result{}, nil)

	env.ExecuteWorkflow(DiscoveryWorkflow, in)

	s.True(env.IsWorkflowCompleted())
	require.NoError(s.T(), env.GetWorkflowError())
	s.Equal([]model.RunStatus{model.RunSearching, model.RunCompleted}, statuses)
}

func (s *workflowTestSuite) TestSearchFailureMarksRunFailed() {
	env := s.NewTestWorkflowEnvironment()
	registerActivities(env)
	in := testInput()

	var statuses []model.RunStatus
	env.OnActivity(ActivityUpdateRunStatus, mock.Anything, "run-1", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { statuses = append(statuses, args.Get(2).(model.RunStatus)) }).
		Return(nil).Times(2)
	env.OnActivity(ActivitySearch, mock.Anything, in.Context).Return([]searchprovider.Result(nil), assertSearchErr{})

	env.ExecuteWorkflow(DiscoveryWorkflow, in)

	s.True(env.IsWorkflowCompleted())
	require.Error(s.T(), env.GetWorkflowError())
	s.Equal([]model.RunStatus{model.RunSearching, model.RunFailed}, statuses)
}

type assertSearchErr struct{}

func (assertSearchErr) Error() string { return "search: provider exhausted" }
