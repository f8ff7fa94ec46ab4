// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package unit compiles process definitions into systemd unit files.
//
// A [ProcessSpec] describes one long-running or scheduled process of an
// application. [Compile] maps a set of specs to [UnitFile] values:
//
//   - replicas == 1 produces a singleton {app}-{proc}.service
//   - replicas > 1 produces a template {app}-{proc}@.service whose
//     instances are @1 through @N
//   - a socket flag adds a matching .socket unit (a template socket for
//     template services, so instance k's socket activates instance k)
//   - a timer adds {app}-{proc}.timer and turns the service into a
//     oneshot that the timer triggers
//
// Every service also receives a base drop-in, 10-drydock.conf, carrying
// the user, working directory, environment file and restart policy.
// Operator drop-ins are discovered from a directory by
// [DiscoverDropIns] and validated with a strict INI checker so that
// syntax errors fail at compile time instead of inside the remote
// systemd daemon.
//
// Rendering is pure: the same specs and [Context] always produce
// byte-identical bodies, and each [UnitFile] carries a BLAKE3 digest of
// its body so deploys can restart only what changed.
//
// [PlanScale] computes which template instances to stop and start when
// the replica count changes.
package unit
