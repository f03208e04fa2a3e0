package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// openCommand creates the open command.
func (c *CLI) openCommand() *cobra.Command {
	var (
		noCache    bool
		templateID string
	)

	cmd := &cobra.Command{
		Use:   "open <project-id>",
		Short: "Load a project and show its outline",
		Long: `Load a project from the entity store and print its layers, templates,
and element trees. When the store is unreachable, the locally cached
snapshot is used instead.

With --template, the given template is made current and its binding data
is hydrated from the configured data API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			eng, err := c.newEngine(ctx, noCache)
			if err != nil {
				return err
			}

			spinner := newSpinnerWithContext(ctx, "Loading project...")
			spinner.Start()
			if err := eng.Load(ctx, args[0]); err != nil {
				spinner.StopWithError("Load failed")
				return err
			}
			spinner.Stop()

			state := eng.State()
			printSuccess("Opened %s", StyleHighlight.Render(state.Project.Name))
			printKeyValue("Canvas", fmt.Sprintf("%dx%d @ %d fps",
				state.Project.CanvasWidth, state.Project.CanvasHeight, state.Project.FrameRate))
			printKeyValue("Layers", fmt.Sprintf("%d", len(state.Layers)))
			printKeyValue("Templates", fmt.Sprintf("%d", len(state.Templates)))
			printKeyValue("Elements", fmt.Sprintf("%d", len(state.Elements)))
			printNewline()

			printProjectOutline(state)

			if templateID != "" {
				if err := eng.SetCurrentTemplate(ctx, templateID); err != nil {
					return err
				}
				if data := eng.TemplateData(templateID); data != nil {
					printInfo("Hydrated %s from %s", templateID, StyleHighlight.Render(data.Slug))
					printDetail("%d records, active #%d", len(data.Records), data.ActiveRecordIndex)
				} else {
					printDetail("Template %s has no data source", templateID)
				}
			}

			prog.done(fmt.Sprintf("Loaded %d templates", len(state.Templates)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the local project cache")
	cmd.Flags().StringVarP(&templateID, "template", "t", "", "make this template current and hydrate its data")
	return cmd
}
