// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package deploy drives one deployment of an application to its host.
//
// A [Pipeline] moves through a fixed sequence of states:
//
//	Building → SecretsResolved → Bundled → Uploaded → Installed →
//	ServicesConfigured → Verified → Done
//
// Build, secret resolution and bundling happen locally and never touch
// the host. Upload retries on checksum mismatch with linear backoff
// through an injectable [clock.Clock]. Once the bundle is on the host,
// any failure (including cancellation of the caller's context) moves
// the pipeline to RollingBack, which restores the previous release on
// a fresh bounded context, or uninstalls the failed release when there
// is none.
//
// Every failure is returned as a [*StageError] wrapping one of the
// taxonomy types ([BuildError], [UploadError], [ServiceError], ...),
// so callers can use [errors.As] for the detail they need and
// [ExitCode] for the process exit status.
//
// [Observer] implementations see every stage and state transition;
// [LogObserver] writes structured log lines and [MetricsObserver]
// records Prometheus metrics into a node-exporter textfile.
package deploy
