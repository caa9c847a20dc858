// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/council"
	"github.com/jeranaias/colossus/internal/render"
	"github.com/jeranaias/colossus/internal/stream"
	"github.com/jeranaias/colossus/internal/think"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// printer writes a turn to a line-oriented terminal as it streams. Text
// cannot be taken back once written, so it only ever appends: new reasoning
// is written dimmed, new answer text plainly.
type printer struct {
	out          io.Writer
	showThinking bool

	thinkingOut int
	answerOut   int
	inThinking  bool
}

func newPrinter(out io.Writer, showThinking bool) *printer {
	return &printer{out: out, showThinking: showThinking}
}

// reset prepares for the next turn.
func (p *printer) reset() {
	p.thinkingOut = 0
	p.answerOut = 0
	p.inThinking = false
}

// update writes whatever p has not yet written.
func (p *printer) update(proj think.Projection) {
	if proj.Phase == think.Scanning && maybeMarker(proj.Answer) {
		return
	}

	if proj.SawTag && p.showThinking {
		if len(proj.Thinking) > p.thinkingOut {
			if !p.inThinking && p.thinkingOut == 0 {
				fmt.Fprint(p.out, DimStyle.Render("Thinking: "))
			}
			p.inThinking = true
			fmt.Fprint(p.out, ThinkingStyle.Render(proj.Thinking[p.thinkingOut:]))
			p.thinkingOut = len(proj.Thinking)
		}
		if proj.AutoCollapse && p.inThinking {
			fmt.Fprint(p.out, "\n\n")
			p.inThinking = false
		}
	}

	answer := proj.Answer
	if p.answerOut == 0 {
		answer = strings.TrimLeft(answer, " \t\n")
		if answer == "" {
			return
		}
		p.answerOut = len(proj.Answer) - len(answer)
	}
	if len(proj.Answer) > p.answerOut {
		fmt.Fprint(p.out, proj.Answer[p.answerOut:])
		p.answerOut = len(proj.Answer)
	}
}

// finish ends a turn with its annotation and stats line.
func (p *printer) finish(res stream.Result) {
	p.update(res.Projection)
	if res.Outcome == stream.Failed && res.Text == stream.Offline && p.answerOut == 0 {
		fmt.Fprint(p.out, stream.Offline)
	}
	if res.Annotation != "" {
		fmt.Fprint(p.out, " "+render.Annotation.Render(res.Annotation))
	}
	fmt.Fprintln(p.out)
	if res.Outcome == stream.Completed {
		fmt.Fprintln(p.out, render.FinalMeta(res.Projection.Answer, res.Usage.CompletionTokens, res.Usage.Elapsed))
	}
	p.reset()
}

// maybeMarker reports whether text could still turn into an opening
// reasoning marker, so printing it now might print the marker itself.
func maybeMarker(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if trimmed == "" {
		return true
	}
	candidates := []string{think.OpenTag}
	for _, v := range think.Fallbacks {
		candidates = append(candidates, v.Open)
	}
	for _, open := range candidates {
		if len(trimmed) < len(open) && strings.EqualFold(open[:len(trimmed)], trimmed) {
			return true
		}
	}
	return false
}

// =============================================================================
// EVENT HANDLER
// =============================================================================

// handleEvent is the chat render callback for line-oriented output.
func (p *printer) handleEvent(ev chat.Event) {
	switch ev.Kind {
	case chat.EventStatus:
		fmt.Fprintln(p.out, render.Status.Render(ev.Status))
	case chat.EventSources:
		if len(ev.Sources) == 0 {
			fmt.Fprintln(p.out, render.Status.Render("No search results."))
			return
		}
		fmt.Fprintln(p.out, render.Status.Render(fmt.Sprintf("Found %d sources:", len(ev.Sources))))
		for i, r := range ev.Sources {
			fmt.Fprintf(p.out, "  %s %s\n", DimStyle.Render(fmt.Sprintf("[%d]", i+1)), r.Title)
		}
		fmt.Fprintln(p.out)
	case chat.EventStream:
		p.update(ev.Update.Projection)
	case chat.EventCouncil:
		p.handleProgress(ev.Progress)
	}
}

func (p *printer) handleProgress(pr council.Progress) {
	switch {
	case pr.Started && pr.Stage == council.StageConsensus:
		fmt.Fprintln(p.out, render.ConsensusLabel.Render("Consensus"))
	case pr.Started:
		fmt.Fprintln(p.out, render.PersonaLabel(pr.Persona.Name, pr.Persona.Color))
	case pr.Done && pr.Result != nil:
		p.finish(*pr.Result)
		fmt.Fprintln(p.out)
	case pr.Done:
		// No chair run: nothing was streamed.
	default:
		p.update(pr.Update.Projection)
	}
}
