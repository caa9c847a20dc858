// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package think separates a model's reasoning segment from its answer.
//
// Models are asked to wrap their reasoning in <think>...</think>, but they
// do not always comply: the closing tag may never arrive, and some models
// open with a plain-text label such as "Thinking:" instead of the tag.
//
// A Splitter is fed the full text accumulated so far on every update and
// rescans it from the start, so a tag split across two network chunks is
// never a problem. The first opening marker it recognizes is locked for the
// rest of the turn, which keeps the split monotonic as text keeps arriving.
//
//	sp := think.New()
//	for delta := range deltas {
//	    buf.WriteString(delta)
//	    p := sp.Update(buf.String())
//	    if p.AutoCollapse {
//	        panel.Collapse()
//	    }
//	    render(p.Thinking, p.Answer)
//	}
package think
