package followup

// Confidence scoring is deterministic and computed here rather than
// trusted from the model, so the approval gate behaves the same across
// model versions.
const (
	confidenceBase = 0.7
	confidenceMin  = 0.4
	confidenceMax  = 1.0
)

// ScoreConfidence rates a generated draft. Specific scenarios with
// concrete context score higher; late touches and off-length bodies
// score lower.
func ScoreConfidence(scenario string, touchNumber int, body string) float64 {
	score := confidenceBase

	switch scenario {
	case ScenarioMeetingScheduled, ScenarioDemoCompleted:
		score += 0.1
	case ScenarioCheckBackDateReached:
		score += 0.05
	case ScenarioNoResponseDefault:
		score -= 0.05
	}

	if touchNumber >= 4 {
		score -= 0.1
	}

	if n := len(body); n >= 120 && n <= 600 {
		score += 0.05
	} else if n < 40 || n > 1200 {
		score -= 0.2
	}

	if score < confidenceMin {
		return confidenceMin
	}
	if score > confidenceMax {
		return confidenceMax
	}
	return score
}
