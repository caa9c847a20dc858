// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package council

import (
	"fmt"
	"strings"

	"github.com/jeranaias/colossus/internal/think"
)

// DefaultPersonaSuffix is appended to every persona prompt.
const DefaultPersonaSuffix = " Give a well-founded but concise opinion. Briefly justify your view."

// ChairSystemPrompt is the chair's base system prompt.
const ChairSystemPrompt = "You are the chair of the AI council. Analyze the statements of the members."

// NoConsensusMessage is reported when no persona produced a usable answer.
const NoConsensusMessage = "no consensus possible (no answers)"

// SynthesisPrompt builds the chair's user prompt. Reasoning spans are
// stripped from every answer to save context.
func SynthesisPrompt(question string, outcomes []PersonaOutcome) string {
	blocks := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		blocks = append(blocks, fmt.Sprintf("### %s:\n%s", o.Persona.Name, think.Strip(o.Answer)))
	}

	var sb strings.Builder
	sb.WriteString("You are the neutral recorder of the AI council.\n")
	sb.WriteString("Your task is to summarize the discussion of the council members and draw a conclusion.\n\n")
	fmt.Fprintf(&sb, "THE QUESTION WAS: %q\n\n", question)
	sb.WriteString("THESE ARE THE ANSWERS OF THE COUNCIL MEMBERS:\n")
	sb.WriteString(strings.Join(blocks, "\n\n"))
	sb.WriteString("\n\nTASK:\n")
	sb.WriteString("Write a \"Consensus Report\" based EXCLUSIVELY on the answers above.\n")
	sb.WriteString("1. Summarize the core arguments of the members. Refer to the members by name.\n")
	sb.WriteString("2. Identify agreements and contradictions between the members.\n")
	sb.WriteString("3. End with a clear conclusion that best reflects the consensus of the council.\n\n")
	sb.WriteString("IMPORTANT: Do not add facts of your own that the members did not mention. Only analyze what was said.")
	return sb.String()
}
