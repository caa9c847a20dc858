// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for colossus.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Inference server connection
//   - ChatConfig: Models, sampling and prompt settings
//   - StorageConfig: Session store selection
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (COLOSSUS_*)
//   - ~/.colossus/config.toml
//   - ~/.colossus/config.json
//   - Built-in defaults
//
// COLOSSUS_HOME relocates the whole directory.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Chat.Model)
//
// There is no package-level singleton; callers pass *Config down.
package config
