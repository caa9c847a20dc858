// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes chat sessions over HTTP.
//
// # Endpoints
//
//   - GET    /health                  - Liveness and version
//   - GET    /v1/stats                - Usage aggregate
//   - GET    /v1/models               - Models per backend
//   - GET    /v1/personas             - Council personas
//   - GET    /v1/sessions             - Session list, most recent first
//   - POST   /v1/sessions             - Create an empty session
//   - GET    /v1/sessions/{id}        - Full session
//   - DELETE /v1/sessions/{id}        - Delete a session
//   - POST   /v1/sessions/{id}/ask    - Ask a question, streamed as SSE
//
// The ask endpoint streams named events: status, sources, projection,
// persona, consensus, done, title and error. Closing the connection cancels
// the turn; the partial answer is kept in the session.
//
// # Security
//
//   - Bearer token authentication with constant-time comparison
//   - Per-client rate limiting
//   - Security headers and panic recovery
//
// /health is never authenticated.
package server
