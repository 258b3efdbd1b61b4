/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package streamjoin

import (
	"fmt"
	"time"

	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	joinErrors "github.com/pickme-go/stream-join/errors"
	"github.com/pickme-go/stream-join/logger"
)

type Configs map[string]interface{}

type config struct {
	name           string
	sizeHint       int
	metricsEnabled bool
	logger         log.Logger
	metrics        *Metrics
	errorHandler   joinErrors.Handler
	err            error
}

type Option func(*config)

func newConfig(opts ...Option) (*config, error) {
	c := &config{
		name:           `join`,
		metricsEnabled: true,
		logger:         logger.DefaultLogger,
		metrics:        noopMetrics,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.err != nil {
		return nil, c.err
	}

	if !c.metricsEnabled {
		c.metrics = noopMetrics
	}

	if c.errorHandler == nil {
		c.errorHandler = joinErrors.NewLogHandler(c.logger)
	}

	return c, nil
}

func (c *config) fail(format string, args ...interface{}) {
	if c.err != nil {
		return
	}
	c.err = joinErrors.New(joinErrors.Config, joinErrors.NoSide, errors.New(fmt.Sprintf(format, args...)))
}

func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		if logger == nil {
			c.fail(`logger cannot be nil`)
			return
		}
		c.logger = logger
	}
}

// WithMetrics reports evaluations through m. Metrics must be created once per
// reporter with NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		if m == nil {
			c.fail(`metrics cannot be nil`)
			return
		}
		c.metrics = m
	}
}

// WithErrorHandler is called once for every failed evaluation.
func WithErrorHandler(h joinErrors.Handler) Option {
	return func(c *config) {
		c.errorHandler = h
	}
}

// WithIndexSizeHint pre-sizes the key index for about n right keys.
func WithIndexSizeHint(n int) Option {
	return func(c *config) {
		if n < 0 {
			c.fail(`index size hint must not be negative, have %d`, n)
			return
		}
		c.sizeHint = n
	}
}

// WithConfig applies configs by key:
//
//	join.name             string
//	join.index.sizeHint   int
//	join.metrics.enabled  bool
func WithConfig(configs Configs) Option {
	return func(c *config) {
		for p, value := range configs {
			switch p {
			case `join.name`:
				if v, ok := value.(string); ok {
					c.name = v
					continue
				}
				c.fail(`unsupported config type for [%s]`, p)

			case `join.index.sizeHint`:
				if v, ok := value.(int); ok {
					WithIndexSizeHint(v)(c)
					continue
				}
				c.fail(`unsupported config type for [%s]`, p)

			case `join.metrics.enabled`:
				if v, ok := value.(bool); ok {
					c.metricsEnabled = v
					continue
				}
				c.fail(`unsupported config type for [%s]`, p)

			default:
				c.fail(`unknown config [%s]`, p)
			}
		}
	}
}

type Metrics struct {
	evaluations metrics.Counter
	emitted     metrics.Counter
	indexBuild  metrics.Observer
}

var noopMetrics = NewMetrics(metrics.NoopReporter())

func NewMetrics(reporter metrics.Reporter) *Metrics {
	return &Metrics{
		evaluations: reporter.Counter(metrics.MetricConf{
			Path:   `stream_join_evaluations`,
			Labels: []string{`name`, `type`, `status`},
		}),
		emitted: reporter.Counter(metrics.MetricConf{
			Path:   `stream_join_rows_emitted`,
			Labels: []string{`name`, `type`},
		}),
		indexBuild: reporter.Observer(metrics.MetricConf{
			Path:   `stream_join_index_build_latency_microseconds`,
			Labels: []string{`name`, `type`},
		}),
	}
}

func (m *Metrics) record(name string, typ Type, status string, stats Stats) {
	labels := map[string]string{
		`name`: name,
		`type`: typ.String(),
	}

	m.emitted.Count(float64(stats.Emitted), labels)
	if stats.IndexBuildTime > 0 {
		m.indexBuild.Observe(float64(stats.IndexBuildTime.Nanoseconds()/int64(time.Microsecond)), labels)
	}

	m.evaluations.Count(1, map[string]string{
		`name`:   name,
		`type`:   typ.String(),
		`status`: status,
	})
}
