// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"log/slog"
	"time"
)

// Observer is notified of pipeline progress. Calls come from the
// goroutine running the pipeline, in order.
type Observer interface {
	StateChanged(from, to State)
	StageStarted(stage Stage)
	StageFinished(stage Stage, elapsed time.Duration, err error)
	Finished(result Result)
}

// MultiObserver fans notifications out to every element.
type MultiObserver []Observer

func (m MultiObserver) StateChanged(from, to State) {
	for _, observer := range m {
		observer.StateChanged(from, to)
	}
}

func (m MultiObserver) StageStarted(stage Stage) {
	for _, observer := range m {
		observer.StageStarted(stage)
	}
}

func (m MultiObserver) StageFinished(stage Stage, elapsed time.Duration, err error) {
	for _, observer := range m {
		observer.StageFinished(stage, elapsed, err)
	}
}

func (m MultiObserver) Finished(result Result) {
	for _, observer := range m {
		observer.Finished(result)
	}
}

// LogObserver writes one structured line per stage and state change.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) StateChanged(from, to State) {
	o.Logger.Debug("pipeline state changed", "from", from, "to", to)
}

func (o LogObserver) StageStarted(stage Stage) {
	o.Logger.Info("stage started", "stage", stage)
}

func (o LogObserver) StageFinished(stage Stage, elapsed time.Duration, err error) {
	if err != nil {
		o.Logger.Error("stage failed", "stage", stage, "elapsed", elapsed, "status", "failed", "error", err)
		return
	}
	o.Logger.Info("stage finished", "stage", stage, "elapsed", elapsed, "status", "ok")
}

func (o LogObserver) Finished(result Result) {
	attributes := []any{
		"version", result.Version,
		"outcome", result.Outcome,
		"elapsed", result.Duration,
	}
	if result.Err != nil {
		attributes = append(attributes, "error", result.Err)
	}
	if result.RollbackErr != nil {
		attributes = append(attributes, "rollback_error", result.RollbackErr)
	}
	if result.Outcome == OutcomeSuccess {
		o.Logger.Info("deploy finished", attributes...)
		return
	}
	o.Logger.Error("deploy failed", attributes...)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State)                 {}
func (nopObserver) StageStarted(Stage)                        {}
func (nopObserver) StageFinished(Stage, time.Duration, error) {}
func (nopObserver) Finished(Result)                           {}
