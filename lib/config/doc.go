// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads drydock.yaml (or drydock.jsonc) and turns it into
// the typed values the rest of drydock works with.
//
// Exactly one file is read: the path given with --config, else
// $DRYDOCK_CONFIG, else the first of drydock.yaml, drydock.yml and
// drydock.jsonc in the working directory. Unknown keys are errors.
//
// After decoding, ${VAR} and ${VAR:-default} references are expanded in
// string values, DRYDOCK_* environment variables override individual
// settings (see [Overrides]), and relative paths are resolved against
// the directory holding the file.
//
// [Config.Project] validates everything at once and returns a
// *deploy.ConfigurationError listing every problem.
package config
