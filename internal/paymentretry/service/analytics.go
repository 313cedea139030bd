package service

import (
	"context"
	"strings"
	"time"

	"github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
)

// Report aggregates statusHistory across all retries: transition
// frequencies, mean time spent before each transition, and the most common
// status path ending in SUCCESS.
func (s *Service) Report(ctx context.Context) (domain.AnalyticsReport, error) {
	retries, err := s.repo.ListAll(ctx, s.db)
	if err != nil {
		return domain.AnalyticsReport{}, err
	}

	report := domain.AnalyticsReport{
		TotalRetries:        len(retries),
		TransitionCounts:    make(map[string]int),
		AvgTimeInTransition: make(map[string]time.Duration),
	}

	totals := make(map[string]time.Duration)
	successPaths := make(map[string]int)

	for _, retry := range retries {
		history := retry.StatusHistory
		for i := 1; i < len(history); i++ {
			key := transitionKey(history[i-1].Status, history[i].Status)
			report.TransitionCounts[key]++
			totals[key] += history[i].Timestamp.Sub(history[i-1].Timestamp)
		}

		if retry.Status == domain.StatusSuccess && len(history) > 0 {
			successPaths[pathKey(history)]++
		}
	}

	for key, total := range totals {
		if n := report.TransitionCounts[key]; n > 0 {
			report.AvgTimeInTransition[key] = total / time.Duration(n)
		}
	}

	var bestPath string
	var bestCount int
	for path, count := range successPaths {
		if count > bestCount || (count == bestCount && path < bestPath) {
			bestPath, bestCount = path, count
		}
	}
	if bestCount > 0 {
		report.MostCommonSuccessPath = &domain.PathCount{
			Path:  parsePath(bestPath),
			Count: bestCount,
		}
	}

	return report, nil
}

func transitionKey(from, to domain.Status) string {
	return string(from) + "->" + string(to)
}

func pathKey(history []domain.StatusChange) string {
	parts := make([]string, len(history))
	for i, change := range history {
		parts[i] = string(change.Status)
	}
	return strings.Join(parts, ">")
}

func parsePath(key string) []domain.Status {
	parts := strings.Split(key, ">")
	path := make([]domain.Status, len(parts))
	for i, part := range parts {
		path[i] = domain.Status(part)
	}
	return path
}
