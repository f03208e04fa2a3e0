package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keylinehq/keyline/pkg/errors"
)

// saveCommand creates the save command.
func (c *CLI) saveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <project-id>",
		Short: "Push the locally cached project state to the remote store",
		Long: `Read the project's locally cached snapshot and run a full save cycle
against the entity store. Desktop hosts write this snapshot after every
edit, so save pushes offline work once connectivity returns.

A partially failed cycle reports each failed step; re-running save
retries the full state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSave(cmd, args[0])
		},
	}
	return cmd
}

func (c *CLI) runSave(cmd *cobra.Command, projectID string) error {
	ctx := cmd.Context()

	local, err := c.newProjectStore(ctx)
	if err != nil {
		return fmt.Errorf("open local cache: %w", err)
	}
	state, ok, err := local.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("read cached project: %w", err)
	}
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "no cached state for project %s", projectID)
	}

	eng, err := c.newEngine(ctx, false)
	if err != nil {
		return err
	}
	if err := eng.ImportState(state); err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Saving project...")
	spinner.Start()
	err = eng.Save(ctx)
	spinner.Stop()

	var perr *errors.PartialSaveError
	switch {
	case err == nil:
		printSuccess("Saved %s", StyleHighlight.Render(state.Project.Name))
		printDetail("%d templates, %d elements", len(state.Templates), len(state.Elements))
		return nil
	case errors.As(err, &perr):
		printWarning("Save completed with %d failed steps", len(perr.Steps))
		for _, step := range perr.Steps {
			printDetail("%s: %v", step.Step, step.Err)
		}
		printDetail("Run 'keyline save %s' again to retry", projectID)
		return err
	default:
		printError("Save failed")
		return err
	}
}
