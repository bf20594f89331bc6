// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package propagation

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/hiercfg/internal/hierarchy"
)

const instrumentationName = "github.com/cardinalhq/hiercfg/internal/propagation"

var (
	tracer = otel.Tracer(instrumentationName)

	propagationCounter  metric.Int64Counter
	propagationDuration metric.Float64Histogram
	affectedHistogram   metric.Int64Histogram
	resolveCounter      metric.Int64Counter
)

func init() {
	meter := otel.Meter(instrumentationName)

	var err error

	propagationCounter, err = meter.Int64Counter(
		"hiercfg.propagation.count",
		metric.WithDescription("Propagations by root level and outcome"),
	)
	if err != nil {
		log.Fatalf("failed to create propagation.count counter: %v", err)
	}

	propagationDuration, err = meter.Float64Histogram(
		"hiercfg.propagation.duration",
		metric.WithDescription("Time spent in one propagation transaction"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Fatalf("failed to create propagation.duration histogram: %v", err)
	}

	affectedHistogram, err = meter.Int64Histogram(
		"hiercfg.propagation.affected",
		metric.WithDescription("Descendants reached by one propagation"),
	)
	if err != nil {
		log.Fatalf("failed to create propagation.affected histogram: %v", err)
	}

	resolveCounter, err = meter.Int64Counter(
		"hiercfg.resolve.count",
		metric.WithDescription("Effective config reads by level and source"),
	)
	if err != nil {
		log.Fatalf("failed to create resolve.count counter: %v", err)
	}
}

func recordPropagation(ctx context.Context, level hierarchy.Level, stage hierarchy.Stage, seconds float64, affected int) {
	outcome := "committed"
	if stage != "" {
		outcome = "aborted"
	}
	attrs := metric.WithAttributes(
		attribute.String("level", level.String()),
		attribute.String("outcome", outcome),
		attribute.String("stage", string(stage)),
	)
	propagationCounter.Add(ctx, 1, attrs)
	propagationDuration.Record(ctx, seconds, attrs)
	if stage == "" {
		affectedHistogram.Record(ctx, int64(affected), metric.WithAttributes(attribute.String("level", level.String())))
	}
}

func recordResolve(ctx context.Context, level hierarchy.Level, source Source) {
	resolveCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", level.String()),
		attribute.String("source", string(source)),
	))
}
