// internal/guard/guard.go
package guard

import "github.com/vendaflow/automation-service/internal/model"

// IsStageConsistent reports whether the deal is still in the pipeline stage
// the flow is pinned to. Flows without a pinned stage match any deal.
// Automations are scheduled when a deal enters a stage; once the deal moves
// on, the queued message is stale and must be cancelled, not retried.
func IsStageConsistent(flow *model.Flow, deal *model.Deal) bool {
	if flow == nil || flow.StageID == nil || *flow.StageID == "" {
		return true
	}
	return deal != nil && deal.StageID == *flow.StageID
}
