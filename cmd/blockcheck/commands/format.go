package commands

import (
	"blockcheck/internal/models"
)

func outcomeLabel(o models.Outcome) string {
	switch o {
	case models.OutcomeFullyBlocked:
		return "fully blocked"
	case models.OutcomePartiallyBlocked:
		return "partially blocked"
	default:
		return "untested"
	}
}
