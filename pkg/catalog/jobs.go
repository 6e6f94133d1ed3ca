// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"
)

// Job sources.
const (
	SourceConfig     = "config"
	SourcePrometheus = "prometheus"
	SourceNotFound   = "not_found"
)

const (
	// DefaultQueryTimeout bounds one pg_up lookup including retries.
	DefaultQueryTimeout = 10 * time.Second

	// DefaultQueryAttempts is the number of pg_up query attempts.
	DefaultQueryAttempts = 3

	upQuery = "pg_up"
)

// JobInfo is the resolved Prometheus scope of a database.
type JobInfo struct {
	Database string `json:"database"`
	Job      string `json:"job"`
	Instance string `json:"instance"`
	Source   string `json:"source"`
}

// JobDetectorConfig configures a JobDetector.
type JobDetectorConfig struct {
	// PrometheusURL is the Prometheus HTTP API base URL
	PrometheusURL string

	// Timeout bounds one lookup. Default: DefaultQueryTimeout
	Timeout time.Duration

	// Attempts bounds query attempts. Default: DefaultQueryAttempts
	Attempts int

	// InitialInterval is the first retry delay. Default: 200ms
	InitialInterval time.Duration

	Logger *zap.Logger
}

// JobDetector finds the job label of a database from the pg_up series
// exported by postgres_exporter.
type JobDetector struct {
	api    promv1.API
	config JobDetectorConfig
	logger *zap.Logger
}

// NewJobDetector creates a detector against the Prometheus HTTP API.
func NewJobDetector(config JobDetectorConfig) (*JobDetector, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultQueryTimeout
	}
	if config.Attempts <= 0 {
		config.Attempts = DefaultQueryAttempts
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = 200 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	client, err := api.NewClient(api.Config{Address: config.PrometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}

	return &JobDetector{
		api:    promv1.NewAPI(client),
		config: config,
		logger: config.Logger,
	}, nil
}

// Resolve returns the job for db. A job pinned in the catalog wins.
// Otherwise pg_up is queried: the first series whose instance label contains
// the database name (case-insensitive) is used, then the first series at all.
// Query failures are logged and resolve to SourceNotFound.
func (d *JobDetector) Resolve(ctx context.Context, db Database) JobInfo {
	if db.Job != "" {
		d.logger.Info("job resolved from catalog",
			zap.String("database", db.Name),
			zap.String("job", db.Job))
		return JobInfo{Database: db.Name, Job: db.Job, Source: SourceConfig}
	}

	samples, err := d.queryUp(ctx)
	if err != nil {
		d.logger.Warn("failed to query prometheus for pg_up",
			zap.String("database", db.Name),
			zap.Error(err))
		return JobInfo{Database: db.Name, Source: SourceNotFound}
	}

	job, instance := matchInstance(samples, db.Name)
	if job == "" {
		d.logger.Info("no pg_up job found", zap.String("database", db.Name))
		return JobInfo{Database: db.Name, Source: SourceNotFound}
	}

	d.logger.Info("job detected from pg_up",
		zap.String("database", db.Name),
		zap.String("job", job),
		zap.String("instance", instance))
	return JobInfo{Database: db.Name, Job: job, Instance: instance, Source: SourcePrometheus}
}

func (d *JobDetector) queryUp(ctx context.Context) (model.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.config.InitialInterval

	return backoff.Retry(ctx, func() (model.Vector, error) {
		value, warnings, err := d.api.Query(ctx, upQuery, time.Now())
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			d.logger.Debug("prometheus warning", zap.String("warning", w))
		}
		vector, ok := value.(model.Vector)
		if !ok {
			return nil, backoff.Permanent(fmt.Errorf("unexpected result type %s", value.Type()))
		}
		return vector, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.config.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.logger.Debug("retrying pg_up query", zap.Error(err), zap.Duration("next", next))
		}),
	)
}

func matchInstance(samples model.Vector, name string) (job, instance string) {
	if len(samples) == 0 {
		return "", ""
	}

	needle := strings.ToLower(name)
	for _, s := range samples {
		inst := string(s.Metric[model.InstanceLabel])
		if strings.Contains(strings.ToLower(inst), needle) {
			return string(s.Metric[model.JobLabel]), inst
		}
	}

	first := samples[0].Metric
	return string(first[model.JobLabel]), string(first[model.InstanceLabel])
}
