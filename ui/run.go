package ui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/indexcards/indexnet/pkg/types"
)

const (
	ModeTUI    = "tui"
	ModeStream = "stream"
)

// Provisioner is the part of core.Provisioner the runners drive.
type Provisioner interface {
	GetRegion() string
	GetAccountID() string
	OnProgress(fn func(stage, msg string))
	Apply(ctx context.Context, plan *types.NetworkTopologyPlan) (*types.StackOutputs, error)
	Destroy(ctx context.Context, out *types.StackOutputs) error
}

// ResolveMode validates a --ui value. An empty value selects the TUI on a
// terminal and stream output otherwise.
func ResolveMode(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "":
		if isTerminal(os.Stdout) {
			return ModeTUI, nil
		}
		return ModeStream, nil
	case ModeTUI:
		return ModeTUI, nil
	case ModeStream:
		return ModeStream, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (use tui or stream)", mode)
}

// RunApply provisions plan, showing progress in the selected mode. On failure
// the outputs recorded so far are returned with the error.
func RunApply(ctx context.Context, prov Provisioner, plan *types.NetworkTopologyPlan, mode string) (*types.StackOutputs, error) {
	mode, err := ResolveMode(mode)
	if err != nil {
		return nil, err
	}

	var out *types.StackOutputs
	work := func(ctx context.Context) error {
		var err error
		out, err = prov.Apply(ctx, plan)
		return err
	}

	title := fmt.Sprintf("Provisioning %s", plan.StackName)
	if mode == ModeStream {
		err = newStreamRunner(os.Stdout).run(ctx, prov, "apply", title, work)
	} else {
		err = runOperation(ctx, prov, title, work)
	}
	return out, err
}

// RunDestroy tears down the stack recorded in out.
func RunDestroy(ctx context.Context, prov Provisioner, out *types.StackOutputs, mode string) error {
	mode, err := ResolveMode(mode)
	if err != nil {
		return err
	}

	work := func(ctx context.Context) error {
		return prov.Destroy(ctx, out)
	}

	title := fmt.Sprintf("Destroying %s", out.StackName)
	if mode == ModeStream {
		return newStreamRunner(os.Stdout).run(ctx, prov, "destroy", title, work)
	}
	return runOperation(ctx, prov, title, work)
}
