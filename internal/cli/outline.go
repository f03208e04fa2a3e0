package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keylinehq/keyline/pkg/document"
	"github.com/keylinehq/keyline/pkg/errors"
)

// outlineCommand creates the outline command.
func (c *CLI) outlineCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "outline <project-id> [template-id]",
		Short: "Print a template's scene tree",
		Long: `Print the scene tree of one template, or of every template in the
project when no template id is given. Elements appear in outline order
(sort_order) with their type and z-index.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := c.newEngine(ctx, noCache)
			if err != nil {
				return err
			}
			if err := eng.Load(ctx, args[0]); err != nil {
				return fmt.Errorf("load project: %w", err)
			}
			state := eng.State()

			if len(args) == 2 {
				tpl := state.TemplateByID(args[1])
				if tpl == nil {
					return errors.New(errors.ErrCodeTemplateNotFound, "template %s not found", args[1])
				}
				printTemplateOutline(state, tpl)
				return nil
			}
			printProjectOutline(state)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the local project cache")
	return cmd
}

// =============================================================================
// Tree Printing
// =============================================================================

// printProjectOutline prints every layer with its templates and their
// element trees.
func printProjectOutline(state *document.State) {
	for _, layer := range state.Layers {
		fmt.Println(styleLayer.Render(layer.Name) + " " + StyleDim.Render("(layer)"))
		for _, tpl := range state.TemplatesForLayer(layer.ID) {
			printTemplateOutline(state, tpl)
		}
		printNewline()
	}
}

// printTemplateOutline prints one template's element tree in outline
// order.
func printTemplateOutline(state *document.State, tpl *document.Template) {
	title := "  " + styleTemplate.Render(tpl.Name) + " " + StyleDim.Render(tpl.ID)
	if tpl.Archived {
		title += " " + StyleWarning.Render("[archived]")
	}
	fmt.Println(title)
	printElementTree(state, tpl.ID, "", "  ")
}

// printElementTree prints the children of parentID recursively with
// box-drawing branches.
func printElementTree(state *document.State, templateID, parentID, indent string) {
	children := state.Children(templateID, parentID)
	for i, el := range children {
		branch, childIndent := "├── ", indent+"│   "
		if i == len(children)-1 {
			branch, childIndent = "└── ", indent+"    "
		}

		line := indent + StyleDim.Render(branch) + StyleValue.Render(el.Name) +
			" " + styleElementType.Render(string(el.Type)) +
			" " + StyleDim.Render(fmt.Sprintf("z=%d", el.ZIndex))
		if n := len(state.BindingsForElement(el.ID)); n > 0 {
			line += " " + StyleDim.Render(fmt.Sprintf("(%d bound)", n))
		}
		fmt.Println(line)

		printElementTree(state, templateID, el.ID, childIndent)
	}
}
