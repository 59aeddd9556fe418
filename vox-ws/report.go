package voxws

import (
	"sort"
	"time"

	"github.com/voxdemo/vox-go-utils/vox-ws/sessiondao"
)

// Age buckets used by SessionReport.
const (
	AgeUnder5m  = "lt_5m"
	AgeUnder1h  = "5m_1h"
	AgeUnder2h  = "1h_2h"
	AgeOver2h   = "gte_2h"
	AgeUnparsed = "invalid"
)

// SessionReport is a point-in-time summary of the sessions table.
type SessionReport struct {
	GeneratedAt     time.Time      `json:"generatedAt"`
	Total           int            `json:"total"`
	Expired         int            `json:"expired"`
	OldestCreatedAt string         `json:"oldestCreatedAt,omitempty"`
	ByAge           map[string]int `json:"byAge"`
	ByEndpoint      map[string]int `json:"byEndpoint"`
}

// BuildReport summarizes sessions as of now.
func BuildReport(sessions []sessiondao.Session, now time.Time) SessionReport {
	report := SessionReport{
		GeneratedAt: now.UTC(),
		Total:       len(sessions),
		ByAge:       map[string]int{},
		ByEndpoint:  map[string]int{},
	}

	var created []string
	for _, s := range sessions {
		if s.Expired(now) {
			report.Expired++
		}
		if s.Endpoint != "" {
			report.ByEndpoint[s.Endpoint]++
		}

		t, err := s.Created()
		if err != nil {
			report.ByAge[AgeUnparsed]++
			continue
		}
		created = append(created, s.CreatedAt)

		switch age := now.Sub(t); {
		case age < 5*time.Minute:
			report.ByAge[AgeUnder5m]++
		case age < time.Hour:
			report.ByAge[AgeUnder1h]++
		case age < 2*time.Hour:
			report.ByAge[AgeUnder2h]++
		default:
			report.ByAge[AgeOver2h]++
		}
	}

	// RFC 3339 UTC timestamps sort lexically.
	if len(created) > 0 {
		sort.Strings(created)
		report.OldestCreatedAt = created[0]
	}
	return report
}
