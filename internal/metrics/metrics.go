package metrics

import (
	"blockcheck/internal/models"
)

// CategoryMetrics summarises one category of a snapshot.
type CategoryMetrics struct {
	Name     string           `json:"name"`
	Metrics  models.Metrics   `json:"metrics"`
	Services []ServiceOutcome `json:"services"`
}

// ServiceOutcome pairs a service with its group classification.
type ServiceOutcome struct {
	Name    string         `json:"name"`
	Outcome models.Outcome `json:"outcome"`
	Metrics models.Metrics `json:"metrics"`
}

// Aggregate derives run metrics from a catalog snapshot.
func Aggregate(categories []models.Category) models.Metrics {
	var m models.Metrics
	for _, cat := range categories {
		for _, svc := range cat.Services {
			count(&m, svc.Domains)
		}
	}
	m.BlockedPercentage = Percentage(m.Blocked, m.Total)
	return m
}

// GroupOutcome classifies a service group. Any pending domain makes the group
// untested; an empty group is untested as well.
func GroupOutcome(group models.ServiceGroup) models.Outcome {
	if len(group.Domains) == 0 {
		return models.OutcomeUntested
	}
	blocked := 0
	for _, d := range group.Domains {
		switch d.Status {
		case models.StatusBlocked:
			blocked++
		case models.StatusReachable:
		default:
			return models.OutcomeUntested
		}
	}
	if blocked == len(group.Domains) {
		return models.OutcomeFullyBlocked
	}
	return models.OutcomePartiallyBlocked
}

// ByCategory breaks a snapshot down per category and service.
func ByCategory(categories []models.Category) []CategoryMetrics {
	if len(categories) == 0 {
		return nil
	}
	out := make([]CategoryMetrics, 0, len(categories))
	for _, cat := range categories {
		cm := CategoryMetrics{
			Name:     cat.Name,
			Metrics:  Aggregate([]models.Category{cat}),
			Services: make([]ServiceOutcome, 0, len(cat.Services)),
		}
		for _, svc := range cat.Services {
			var sm models.Metrics
			count(&sm, svc.Domains)
			sm.BlockedPercentage = Percentage(sm.Blocked, sm.Total)
			cm.Services = append(cm.Services, ServiceOutcome{
				Name:    svc.Name,
				Outcome: GroupOutcome(svc),
				Metrics: sm,
			})
		}
		out = append(out, cm)
	}
	return out
}

// Percentage returns round-half-up(100*part/total), or 0 for an empty total.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}

func count(m *models.Metrics, domains []models.DomainEntry) {
	for _, d := range domains {
		m.Total++
		switch d.Status {
		case models.StatusBlocked:
			m.Blocked++
			m.Tested++
		case models.StatusReachable:
			m.Reachable++
			m.Tested++
		default:
			m.Pending++
		}
	}
}
