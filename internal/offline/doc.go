// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline enforces the local-only network policy.
//
// With LocalOnly set, inference endpoints must be loopback addresses and the
// research phase may not reach the web. Every outbound URL is checked for an
// http or https scheme regardless of the policy.
//
// # Usage
//
//	pol := offline.Policy{LocalOnly: cfg.Offline.LocalOnly}
//	if err := pol.CheckEndpoint(cfg.Backend.BaseURL); err != nil {
//		return err
//	}
//	httpClient.Transport = pol.Transport(nil)
package offline
