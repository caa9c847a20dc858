// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ModelLister is a backend that can enumerate its models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ModelGroup is the model list of one backend. Err is set instead of
// Models when the backend could not be queried.
type ModelGroup struct {
	Backend string   `json:"backend"`
	Models  []string `json:"models"`
	Err     error    `json:"-"`
	Error   string   `json:"error,omitempty"`
}

// ListAllModels queries every backend concurrently. One unreachable backend
// does not hide the others; groups come back sorted by backend name.
func ListAllModels(ctx context.Context, listers map[string]ModelLister) []ModelGroup {
	groups := make([]ModelGroup, 0, len(listers))
	for name := range listers {
		groups = append(groups, ModelGroup{Backend: name})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Backend < groups[j].Backend })

	g, gctx := errgroup.WithContext(ctx)
	for i := range groups {
		lister := listers[groups[i].Backend]
		g.Go(func() error {
			models, err := lister.ListModels(gctx)
			if err != nil {
				groups[i].Err = err
				groups[i].Error = err.Error()
				return nil
			}
			sort.Strings(models)
			groups[i].Models = models
			return nil
		})
	}
	_ = g.Wait()
	return groups
}
