package temporal

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	sdkclient "go.temporal.io/sdk/client"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/client"
	"github.com/vndocker/pos-AI-community/signin"
)

// Client starts runs on a Temporal cluster. The run key is the workflow
// ID and a key that was ever used is rejected.
type Client struct {
	c         sdkclient.Client
	taskQueue string
}

var _ client.Orchestrator = (*Client)(nil)

// NewClient returns an orchestrator dispatching to taskQueue.
func NewClient(c sdkclient.Client, taskQueue string) *Client {
	return &Client{c: c, taskQueue: taskQueue}
}

// StartSignIn starts a sign-in run and waits for its outcome.
func (c *Client) StartSignIn(ctx context.Context, runKey string, in signin.Input) (signin.Result, error) {
	var res signin.Result
	err := c.execute(ctx, runKey, signin.SignInWorkflow, in, &res)
	return res, err
}

// StartVerify starts a verify run and waits for its outcome.
func (c *Client) StartVerify(ctx context.Context, runKey string, in signin.VerifyInput) (signin.VerifyResult, error) {
	var res signin.VerifyResult
	err := c.execute(ctx, runKey, signin.VerifyWorkflow, in, &res)
	return res, err
}

func (c *Client) execute(ctx context.Context, runKey, name string, in, out any) error {
	run, err := c.c.ExecuteWorkflow(ctx, sdkclient.StartWorkflowOptions{
		ID:                                       runKey,
		TaskQueue:                                c.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, name, in)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return fmt.Errorf("%w: %s", posauth.ErrRunAlreadyExists, runKey)
		}
		return fmt.Errorf("start workflow %q: %w", name, err)
	}
	if err := run.Get(ctx, out); err != nil {
		return fmt.Errorf("workflow %q run %s: %w", name, run.GetRunID(), err)
	}
	return nil
}
