// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "time"

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)
