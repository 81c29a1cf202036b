package workflow

import (
	"log/slog"

	"binder/internal/queue"
	"binder/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Identifier stage.Handler
	Publisher  stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

type laneKind string

const (
	laneIdentification laneKind = "identification"
	lanePublishing     laneKind = "publishing"
)

type laneState struct {
	kind                 laneKind
	name                 string
	workers              int
	stages               []pipelineStage
	processingStatuses   []queue.Status
	logger               *slog.Logger
	notificationsEnabled bool
	runReclaimer         bool
}

// loggerAware lets the manager route a stage's internal logging into the
// per-scan log file before each run.
type loggerAware interface {
	SetLogger(*slog.Logger)
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	if l.workers <= 0 {
		l.workers = 1
	}
	seenProcessing := make(map[queue.Status]struct{})
	for _, stg := range l.stages {
		if stg.processingStatus == "" {
			continue
		}
		if _, ok := seenProcessing[stg.processingStatus]; !ok {
			l.processingStatuses = append(l.processingStatuses, stg.processingStatus)
			seenProcessing[stg.processingStatus] = struct{}{}
		}
	}
}
