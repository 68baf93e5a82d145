package models

import "time"

// Channel is a notification delivery channel
type Channel string

const (
	ChannelInApp Channel = "IN_APP"
	ChannelEmail Channel = "EMAIL"
	ChannelPush  Channel = "PUSH"
	ChannelSMS   Channel = "SMS"
)

// AllChannels returns every channel in a stable order
func AllChannels() []Channel {
	return []Channel{ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS}
}

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS:
		return true
	}
	return false
}

// FrequencyBucket controls whether a notification goes out now or in a digest
type FrequencyBucket string

const (
	BucketImmediate FrequencyBucket = "immediate"
	BucketDaily     FrequencyBucket = "daily"
	BucketWeekly    FrequencyBucket = "weekly"
)

// QuietHours is a daily window, in the user's time zone, where non-critical
// notifications are held back. Start and End are "HH:MM"; the window is
// [Start, End) and may wrap past midnight.
type QuietHours struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Start    string `json:"start" yaml:"start" validate:"omitempty,clock"`
	End      string `json:"end" yaml:"end" validate:"omitempty,clock"`
	Timezone string `json:"timezone" yaml:"timezone" validate:"omitempty,timezone"`
}

// FrequencySettings assigns alert types to delivery buckets
type FrequencySettings struct {
	Immediate []AlertType `json:"immediate" yaml:"immediate" validate:"dive,alerttype"`
	Daily     []AlertType `json:"daily" yaml:"daily" validate:"dive,alerttype"`
	Weekly    []AlertType `json:"weekly" yaml:"weekly" validate:"dive,alerttype"`
}

// BucketFor returns the bucket of t. Types listed nowhere are delivered immediately.
func (f FrequencySettings) BucketFor(t AlertType) FrequencyBucket {
	switch {
	case containsType(f.Immediate, t):
		return BucketImmediate
	case containsType(f.Daily, t):
		return BucketDaily
	case containsType(f.Weekly, t):
		return BucketWeekly
	}
	return BucketImmediate
}

// IsImmediate reports whether t is explicitly listed in the immediate bucket
func (f FrequencySettings) IsImmediate(t AlertType) bool {
	return containsType(f.Immediate, t)
}

func containsType(list []AlertType, t AlertType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

// NotificationPreferences is the per-user routing table for alerts
type NotificationPreferences struct {
	UserID          string                  `json:"user_id" yaml:"-"`
	Channels        map[AlertType][]Channel `json:"channels" yaml:"channels" validate:"dive,keys,alerttype,endkeys,dive,channel"`
	QuietHours      QuietHours              `json:"quiet_hours" yaml:"quiet_hours"`
	Frequency       FrequencySettings       `json:"frequency" yaml:"frequency"`
	SeverityFilters map[Channel][]Severity  `json:"severity_filters" yaml:"severity_filters" validate:"dive,keys,channel,endkeys,dive,severity"`
	UpdatedAt       time.Time               `json:"updated_at" yaml:"-"`
}

// Accepts reports whether channel c takes alerts of severity s. A channel
// without a filter entry accepts every severity.
func (p *NotificationPreferences) Accepts(c Channel, s Severity) bool {
	allowed, ok := p.SeverityFilters[c]
	if !ok {
		return true
	}
	for _, v := range allowed {
		if v == s {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the preferences
func (p *NotificationPreferences) Clone() *NotificationPreferences {
	if p == nil {
		return nil
	}
	out := *p
	out.Channels = make(map[AlertType][]Channel, len(p.Channels))
	for k, v := range p.Channels {
		out.Channels[k] = append([]Channel(nil), v...)
	}
	out.SeverityFilters = make(map[Channel][]Severity, len(p.SeverityFilters))
	for k, v := range p.SeverityFilters {
		out.SeverityFilters[k] = append([]Severity(nil), v...)
	}
	out.Frequency = FrequencySettings{
		Immediate: append([]AlertType(nil), p.Frequency.Immediate...),
		Daily:     append([]AlertType(nil), p.Frequency.Daily...),
		Weekly:    append([]AlertType(nil), p.Frequency.Weekly...),
	}
	return &out
}

// UserNotificationPreferences is the persisted row holding one user's preferences
type UserNotificationPreferences struct {
	UserID      string                  `gorm:"primaryKey;size:64" json:"user_id"`
	Preferences NotificationPreferences `gorm:"serializer:json;not null" json:"preferences"`
	UpdatedAt   time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for UserNotificationPreferences
func (UserNotificationPreferences) TableName() string {
	return "notification_preferences"
}

// NotificationDecision is the resolver output for one channel
type NotificationDecision struct {
	Channel    Channel         `json:"channel"`
	DeliverNow bool            `json:"deliver_now"`
	Bucket     FrequencyBucket `json:"bucket"`
}

// DigestEntry is one queued notification waiting for a daily or weekly digest
type DigestEntry struct {
	AlertID      string          `json:"alert_id"`
	UserID       string          `json:"user_id"`
	StrategyName string          `json:"strategy_name"`
	Type         AlertType       `json:"type"`
	Severity     Severity        `json:"severity"`
	Title        string          `json:"title"`
	Channel      Channel         `json:"channel"`
	Bucket       FrequencyBucket `json:"bucket"`
	QueuedAt     time.Time       `json:"queued_at"`
}
