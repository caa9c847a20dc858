// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry keeps the process-wide usage aggregate.
//
// Every finished stream contributes one model.UsageRecord. The running totals
// (request count, prompt and completion tokens, speed of the last turn)
// survive restarts in stats.json and are only cleared by an explicit Reset.
//
// # Usage
//
//	stats, err := telemetry.Open(filepath.Join(dir, "stats.json"))
//	sess := stream.New(backend, stream.WithUsageSink(stats))
//	...
//	fmt.Println(stats.Snapshot().Format())
package telemetry
