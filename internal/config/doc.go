// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles loading and saving portal configuration.
//
// Configuration is read from ~/.portal/config.toml, then PORTAL_*
// environment variables are applied, then the result is validated.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Backend.URL)
//
// Watch reloads the file when it changes on disk:
//
//	w, err := config.Watch(path, func(cfg *config.Config, err error) { ... })
//	defer w.Close()
package config
