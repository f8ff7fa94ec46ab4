// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The deployment pipeline waits between upload retries and between
// service health polls; the deploy lock polls Redis on a ticker. All
// of those take a [Clock] so tests can drive them with [Fake] instead
// of sleeping:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go pipeline.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(2 * time.Second)
//
// Production code uses [Real].
package clock
