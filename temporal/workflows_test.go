package temporal_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/signin"
	"github.com/vndocker/pos-AI-community/temporal"
)

func fastPolicies() signin.Policies {
	fast := func(attempts int, nonRetryable ...activity.Failure) activity.Options {
		return activity.Options{
			Timeout: 5 * time.Second,
			Retry: activity.RetryPolicy{
				InitialInterval: time.Millisecond,
				MaxInterval:     4 * time.Millisecond,
				MaxAttempts:     attempts,
				NonRetryable:    nonRetryable,
			},
		}
	}
	return signin.Policies{
		BotCheck:       fast(3, activity.FailureRejected),
		EmailCheck:     fast(2),
		CodeGeneration: fast(2),
		Delivery:       fast(3, activity.FailureRejected),
	}
}

type WorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env   *testsuite.TestWorkflowEnvironment
	funcs map[activity.Kind]activity.Func
	calls [5]atomic.Int32
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.funcs = map[activity.Kind]activity.Func{
		activity.VerifyBotToken: func(context.Context, activity.Input) (activity.Output, error) {
			return activity.Output{OK: true}, nil
		},
		activity.ValidateEmail: func(_ context.Context, in activity.Input) (activity.Output, error) {
			return activity.Output{OK: activity.ValidEmail(in.Email)}, nil
		},
		activity.GenerateCode: func(context.Context, activity.Input) (activity.Output, error) {
			return activity.Output{OK: true, Code: "271828"}, nil
		},
		activity.DeliverCode: func(context.Context, activity.Input) (activity.Output, error) {
			return activity.Output{OK: true}, nil
		},
	}
	for i := range s.calls {
		s.calls[i].Store(0)
	}

	var table activity.Table
	for _, k := range activity.Kinds() {
		table[k] = func(ctx context.Context, in activity.Input) (activity.Output, error) {
			s.calls[k].Add(1)
			return s.funcs[k](ctx, in)
		}
	}
	temporal.Register(s.env, &table, fastPolicies())
}

func (s *WorkflowSuite) signIn(in signin.Input) signin.Result {
	s.env.ExecuteWorkflow(signin.SignInWorkflow, in)
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())

	var res signin.Result
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	return res
}

func (s *WorkflowSuite) TestSignInSucceeds() {
	res := s.signIn(signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	s.Equal(signin.Result{Message: signin.MsgSignInSuccess, Code: "271828"}, res)
	for _, k := range activity.Kinds() {
		s.EqualValues(1, s.calls[k].Load(), k.String())
	}
}

func (s *WorkflowSuite) TestBotRejectionIsNotRetried() {
	s.funcs[activity.VerifyBotToken] = func(context.Context, activity.Input) (activity.Output, error) {
		return activity.Output{}, activity.Reject("verify bot token", errors.New("status 403"))
	}

	res := s.signIn(signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	s.Equal(signin.MsgInvalidToken, res.Message)
	s.EqualValues(1, s.calls[activity.VerifyBotToken].Load())
	s.Zero(s.calls[activity.GenerateCode].Load())
	s.Zero(s.calls[activity.DeliverCode].Load())
}

func (s *WorkflowSuite) TestDeliveryRecoversWithinBudget() {
	s.funcs[activity.DeliverCode] = func(context.Context, activity.Input) (activity.Output, error) {
		if s.calls[activity.DeliverCode].Load() <= 2 {
			return activity.Output{}, activity.Transient("deliver code", errors.New("connection refused"))
		}
		return activity.Output{OK: true}, nil
	}

	res := s.signIn(signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	s.Equal(signin.MsgSignInSuccess, res.Message)
	s.EqualValues(3, s.calls[activity.DeliverCode].Load())
}

func (s *WorkflowSuite) TestDeliveryExhausted() {
	s.funcs[activity.DeliverCode] = func(context.Context, activity.Input) (activity.Output, error) {
		return activity.Output{}, activity.Transient("deliver code", errors.New("connection refused"))
	}

	res := s.signIn(signin.Input{Email: "cashier@shop.vn", BotToken: "tok"})
	s.Equal(signin.Result{Message: signin.MsgDeliveryFail}, res)
	s.EqualValues(3, s.calls[activity.DeliverCode].Load())
}

func (s *WorkflowSuite) TestInvalidEmailStopsBeforeGeneration() {
	res := s.signIn(signin.Input{Email: "not-an-email", BotToken: "tok"})
	s.Equal(signin.MsgInvalidEmail, res.Message)
	s.Zero(s.calls[activity.GenerateCode].Load())
}

func (s *WorkflowSuite) TestVerifyUsesWorkflowTime() {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.env.SetStartTime(start)
	expired := start.Add(-time.Second)

	s.env.ExecuteWorkflow(signin.VerifyWorkflow, signin.VerifyInput{
		Email: "cashier@shop.vn", Code: "123456", Reference: "123456", ExpiresAt: &expired,
	})
	s.Require().True(s.env.IsWorkflowCompleted())

	var res signin.VerifyResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	s.Equal(signin.StatusExpired, res.Status)
}

func TestActivityOptions(t *testing.T) {
	o := temporal.ActivityOptions(signin.DefaultPolicies().Delivery)

	assert.Equal(t, 30*time.Second, o.StartToCloseTimeout)
	require.NotNil(t, o.RetryPolicy)
	assert.Equal(t, 2*time.Second, o.RetryPolicy.InitialInterval)
	assert.Equal(t, 10*time.Second, o.RetryPolicy.MaximumInterval)
	assert.InDelta(t, 2.0, o.RetryPolicy.BackoffCoefficient, 0)
	assert.EqualValues(t, 3, o.RetryPolicy.MaximumAttempts)
	assert.ElementsMatch(t, []string{"InvalidInput", "PermanentRejection"}, o.RetryPolicy.NonRetryableErrorTypes)

	o = temporal.ActivityOptions(signin.DefaultPolicies().EmailCheck)
	assert.Equal(t, []string{"InvalidInput"}, o.RetryPolicy.NonRetryableErrorTypes)
}

func TestApplicationError(t *testing.T) {
	tests := []struct {
		err  error
		want activity.Failure
	}{
		{activity.Transient("deliver code", errors.New("eof")), activity.FailureTransient},
		{activity.Reject("deliver code", errors.New("550")), activity.FailureRejected},
		{activity.Invalid("deliver code", errors.New("empty code")), activity.FailureInvalid},
		{errors.New("untyped"), activity.FailureTransient},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, temporal.FailureOf(temporal.ApplicationError(tt.err)))
		})
	}
}
