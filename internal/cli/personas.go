// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/render"
	"github.com/jeranaias/colossus/internal/util"
)

// =============================================================================
// PERSONAS COMMAND
// =============================================================================

var personasCmd = &cobra.Command{
	Use:     "personas",
	Aliases: []string{"persona", "p"},
	Short:   "Manage council personas",
	Long: `Manage the council personas.

Personas live in a YAML file (default ~/.colossus/personas.yaml). A running
TUI or server picks up edits without a restart.`,
	RunE: runPersonasList,
}

var personasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List personas",
	Args:  cobra.NoArgs,
	RunE:  runPersonasList,
}

var personaAdd struct {
	prompt string
	color  string
	model  string
}

var personasAddCmd = &cobra.Command{
	Use:     "add <name>",
	Aliases: []string{"set"},
	Short:   "Add a persona or update one with the same name",
	Args:    cobra.ExactArgs(1),
	RunE:    runPersonasAdd,
}

var personasRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a persona",
	Args:    cobra.ExactArgs(1),
	RunE:    runPersonasRemove,
}

func init() {
	f := personasAddCmd.Flags()
	f.StringVar(&personaAdd.prompt, "prompt", "", "System prompt (required)")
	f.StringVar(&personaAdd.color, "color", "", "Label color, e.g. #5fafff")
	f.StringVar(&personaAdd.model, "persona-model", "", "Model bound to this persona")
	_ = personasAddCmd.MarkFlagRequired("prompt")

	personasCmd.AddCommand(personasListCmd, personasAddCmd, personasRemoveCmd)
	rootCmd.AddCommand(personasCmd)
}

func runPersonasList(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n\n", RenderLabel("File:"), app.PersonasPath())
	personas := app.Personas()
	if len(personas) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No personas configured."))
		return nil
	}
	for i, p := range personas {
		fmt.Fprintf(out, "%d. %s", i+1, render.PersonaLabel(p.Name, p.Color))
		if p.ModelID != "" {
			fmt.Fprint(out, " "+DimStyle.Render("("+p.ModelID+")"))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "   "+DimStyle.Render(util.Snippet(util.OneLine(p.Prompt), 70)))
	}
	return nil
}

func runPersonasAdd(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	p := model.Persona{
		Name:    strings.TrimSpace(args[0]),
		Prompt:  strings.TrimSpace(personaAdd.prompt),
		Color:   personaAdd.color,
		ModelID: personaAdd.model,
	}
	personas := model.UpsertPersona(app.Personas(), p)
	if err := model.ValidatePersonas(personas); err != nil {
		return err
	}
	if err := app.SavePersonas(personas); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Saved persona %s\n", SuccessStyle.Render("[OK]"), p.Name)
	return nil
}

func runPersonasRemove(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	personas, err := model.RemovePersona(app.Personas(), args[0])
	if err != nil {
		return err
	}
	if err := app.SavePersonas(personas); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed persona %s\n", SuccessStyle.Render("[OK]"), args[0])
	return nil
}
