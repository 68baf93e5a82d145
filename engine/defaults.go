package engine

import models "trading-journal/database/models_pkg"

// DefaultConfiguration is the configuration handed to users without stored
// settings when no defaults document is supplied
func DefaultConfiguration() *models.AlertConfiguration {
	return &models.AlertConfiguration{
		DrawdownLimits: []models.DrawdownThreshold{
			{
				ID:          "max-drawdown-warning",
				Metric:      models.MetricMaxDrawdown,
				Operator:    models.OperatorGreaterThan,
				Value:       15,
				Enabled:     true,
				Description: "Maximum drawdown above 15%",
				Severity:    models.SeverityHigh,
			},
			{
				ID:              "max-drawdown-critical",
				Metric:          models.MetricMaxDrawdown,
				Operator:        models.OperatorGreaterThan,
				Value:           25,
				Enabled:         true,
				Description:     "Maximum drawdown above 25%",
				Severity:        models.SeverityCritical,
				SuspendStrategy: true,
			},
		},
		PerformanceMilestones: []models.PerformanceMilestone{
			{
				ID:          "first-100-trades",
				Metric:      models.MetricTotalTrades,
				Operator:    models.OperatorGreaterThan,
				Value:       99,
				Enabled:     true,
				Description: "100 trades logged",
				Celebratory: true,
			},
			{
				ID:                      "profit-factor-2",
				Metric:                  models.MetricProfitFactor,
				Operator:                models.OperatorGreaterThan,
				Value:                   2,
				Enabled:                 true,
				Description:             "Profit factor above 2.0",
				Celebratory:             true,
				SuggestPositionIncrease: true,
			},
		},
		MarketConditionThresholds: models.MarketConditionThresholds{
			VolatilityChange:  50,
			VolumeChange:      100,
			CorrelationChange: 30,
		},
		StatisticalSignificanceSettings: models.StatisticalSignificanceSettings{
			MinimumTrades:       30,
			RequiredConfidence:  95,
			EnableNotifications: true,
		},
		GlobalSettings: models.GlobalAlertSettings{
			EnableAlerts:         true,
			MaxAlertsPerDay:      20,
			AutoResolveAfterDays: 30,
		},
	}
}

// DefaultPreferences routes every alert type to the in-app channel, with
// milestones and significance batched into the daily digest
func DefaultPreferences() *models.NotificationPreferences {
	channels := make(map[models.AlertType][]models.Channel)
	for _, t := range models.AllAlertTypes() {
		channels[t] = []models.Channel{models.ChannelInApp}
	}
	channels[models.AlertTypeDrawdownLimit] = []models.Channel{models.ChannelInApp, models.ChannelPush}

	return &models.NotificationPreferences{
		Channels: channels,
		Frequency: models.FrequencySettings{
			Immediate: []models.AlertType{
				models.AlertTypeDrawdownLimit,
				models.AlertTypeMarketConditionChange,
				models.AlertTypeStrategyCorrelation,
				models.AlertTypeDisciplineViolation,
			},
			Daily: []models.AlertType{
				models.AlertTypePerformanceMilestone,
				models.AlertTypeStatisticalSignificance,
			},
		},
		SeverityFilters: map[models.Channel][]models.Severity{
			models.ChannelPush: {models.SeverityHigh, models.SeverityCritical},
		},
		QuietHours: models.QuietHours{Timezone: "UTC"},
	}
}
