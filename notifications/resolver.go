package notifications

import (
	"time"

	models "trading-journal/database/models_pkg"
	"trading-journal/evaluators"
)

// Resolve decides which channels should carry alert and whether each goes out
// now or into a digest. It performs no I/O.
//
// Channels come from the user's per-type routing, narrowed by a drawdown rule's
// own channel list when the alert carries one, then by per-channel severity
// filters. During quiet hours only Critical alerts of types in the immediate
// bucket get through. Alert types in the daily or weekly bucket are queued.
func Resolve(alert *models.StrategyAlert, prefs *models.NotificationPreferences, alertsEnabled bool, now time.Time) []models.NotificationDecision {
	if !alertsEnabled || alert == nil || prefs == nil {
		return nil
	}

	restrict := ruleChannels(alert)
	seen := make(map[models.Channel]bool)
	var channels []models.Channel
	for _, c := range prefs.Channels[alert.Type] {
		if seen[c] || !c.Valid() {
			continue
		}
		seen[c] = true
		if restrict != nil && !restrict[c] {
			continue
		}
		if !prefs.Accepts(c, alert.Severity) {
			continue
		}
		channels = append(channels, c)
	}
	if len(channels) == 0 {
		return nil
	}

	if InQuietHours(prefs.QuietHours, now) {
		override := alert.Severity == models.SeverityCritical && prefs.Frequency.IsImmediate(alert.Type)
		if !override {
			return nil
		}
	}

	bucket := prefs.Frequency.BucketFor(alert.Type)
	decisions := make([]models.NotificationDecision, 0, len(channels))
	for _, c := range channels {
		decisions = append(decisions, models.NotificationDecision{
			Channel:    c,
			DeliverNow: bucket == models.BucketImmediate,
			Bucket:     bucket,
		})
	}
	return decisions
}

// ruleChannels reads the channel restriction a drawdown rule put on the alert.
// Persisted alerts decode it as []interface{}.
func ruleChannels(alert *models.StrategyAlert) map[models.Channel]bool {
	raw, ok := alert.Metadata[evaluators.MetadataChannels]
	if !ok {
		return nil
	}

	out := make(map[models.Channel]bool)
	switch v := raw.(type) {
	case []string:
		for _, c := range v {
			out[models.Channel(c)] = true
		}
	case []interface{}:
		for _, c := range v {
			if s, ok := c.(string); ok {
				out[models.Channel(s)] = true
			}
		}
	case []models.Channel:
		for _, c := range v {
			out[c] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
