package subs

import "fmt"

// OldestSub identifies the longest-lived active subscription.
type OldestSub struct {
	Key string `json:"key"`
	Typ Type   `json:"type"`
	Age string `json:"age"`
}

// HealthReport is the operational diagnosis surface: current counts,
// the oldest subscription, leak verdict, and recent cleanup activity.
type HealthReport struct {
	ActiveCount        int            `json:"active_count"`
	ByType             map[string]int `json:"by_type"`
	OldestSubscription *OldestSub     `json:"oldest_subscription,omitempty"`
	HasLeaks           bool           `json:"has_leaks"`
	LeakReasons        []string       `json:"leak_reasons,omitempty"`
	RecentCleanups     CleanupStats   `json:"recent_cleanups"`
}

// Health assembles the current report. Leak heuristic: more than
// MaxActive simultaneously active, or more than MaxAged older than
// AgedThreshold.
func (r *Registry) Health() HealthReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	report := HealthReport{
		ActiveCount:    len(r.subs),
		ByType:         make(map[string]int),
		RecentCleanups: r.cleanups,
	}

	aged := 0
	var oldest *Subscription
	for _, s := range r.subs {
		s := s
		report.ByType[string(s.Type)]++
		if now.Sub(s.CreatedAt) > r.cfg.AgedThreshold {
			aged++
		}
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) ||
			(s.CreatedAt.Equal(oldest.CreatedAt) && s.Key < oldest.Key) {
			oldest = &s
		}
	}
	if oldest != nil {
		report.OldestSubscription = &OldestSub{
			Key: oldest.Key,
			Typ: oldest.Type,
			Age: now.Sub(oldest.CreatedAt).String(),
		}
	}

	if report.ActiveCount > r.cfg.MaxActive {
		report.LeakReasons = append(report.LeakReasons,
			fmt.Sprintf("%d active subscriptions exceed limit %d", report.ActiveCount, r.cfg.MaxActive))
	}
	if aged > r.cfg.MaxAged {
		report.LeakReasons = append(report.LeakReasons,
			fmt.Sprintf("%d subscriptions older than %s exceed limit %d", aged, r.cfg.AgedThreshold, r.cfg.MaxAged))
	}
	report.HasLeaks = len(report.LeakReasons) > 0

	return report
}
