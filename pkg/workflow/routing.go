package workflow

// Routing is deliberately a set of pure functions over decision codes
// and counters, independent of stage execution, so the state machine's
// branch logic is testable without stages or a model.

// RouteAfterClassification maps a classification decision code to the
// next status. Unknown or unparseable codes fail open to the supervised
// agent-resolution path, never to auto-resolve.
func RouteAfterClassification(decision string) Status {
	switch decision {
	case DecisionAutoResolve:
		return StatusResolving
	case DecisionAgentResolution:
		return StatusValidatingPolicy
	case DecisionHumanEscalation:
		return StatusEscalating
	case DecisionInfoRequest:
		return StatusAwaitingInfo
	default:
		return StatusValidatingPolicy
	}
}

// RouteAfterValidation routes an approved plan to remediation and a
// denied one to escalation.
func RouteAfterValidation(approved bool) Status {
	if approved {
		return StatusResolving
	}
	return StatusEscalating
}

// RouteAfterRemediation decides the next status after a remediation
// attempt. The bound check is strict so that exactly maxIterations
// attempts are made before escalating.
func RouteAfterRemediation(success bool, iteration, maxIterations int) Status {
	if success {
		return StatusFinalizing
	}
	if iteration < maxIterations {
		return StatusResolving
	}
	return StatusEscalating
}

// FinalStatus computes the terminal status at the Finalizing node:
// completed only when the last remediation attempt succeeded and no
// escalation flag was raised along the way.
func FinalStatus(remediation *StageResult, escalated bool) Status {
	if remediation != nil && remediation.Success && !escalated {
		return StatusCompleted
	}
	if escalated {
		return StatusEscalating
	}
	return StatusFailed
}
