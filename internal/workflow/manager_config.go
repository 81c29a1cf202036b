package workflow

import "binder/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	identification := &laneState{kind: laneIdentification, name: "identification", workers: 1, notificationsEnabled: true}
	if m.cfg != nil && m.cfg.Workflow.IdentificationWorkers > 0 {
		identification.workers = m.cfg.Workflow.IdentificationWorkers
	}
	publishing := &laneState{kind: lanePublishing, name: "publishing", workers: 1, notificationsEnabled: true}

	if set.Identifier != nil {
		identification.stages = append(identification.stages, pipelineStage{
			name:             "identifier",
			handler:          set.Identifier,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusIdentifying,
			doneStatus:       queue.StatusReview,
		})
	}
	if set.Publisher != nil {
		publishing.stages = append(publishing.stages, pipelineStage{
			name:             "publisher",
			handler:          set.Publisher,
			startStatus:      queue.StatusConfirmed,
			processingStatus: queue.StatusPublishing,
			doneStatus:       queue.StatusCompleted,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(identification.stages) > 0 {
		identification.finalize()
		lanes[identification.kind] = identification
		order = append(order, identification.kind)
	}
	if len(publishing.stages) > 0 {
		publishing.finalize()
		lanes[publishing.kind] = publishing
		order = append(order, publishing.kind)
	}

	for _, lane := range lanes {
		if lane == nil {
			continue
		}
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
