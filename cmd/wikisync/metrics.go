package main

import (
	"github.com/sirupsen/logrus"

	"wikisync/internal/config"
	"wikisync/internal/metrics"
	"wikisync/internal/metrics/datadog"
	"wikisync/internal/metrics/prompush"
)

// setupMetrics installs the configured backend. The returned function
// flushes it and is meant to be deferred.
func setupMetrics(cfg config.MetricsConfig) (func(), error) {
	var b metrics.Backend
	switch cfg.Backend {
	case "pushgateway":
		pb, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			return nil, err
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			Namespace:  "wikisync.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			return nil, err
		}
		b = db
	default:
		logrus.Debug("metrics disabled")
		return func() {}, nil
	}

	logrus.WithField("backend", cfg.Backend).Info("metrics enabled")
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logrus.WithError(err).Warn("metrics flush failed")
		}
	}, nil
}
