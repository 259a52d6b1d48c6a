package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"Authorization=Basic abc", map[string]string{"Authorization": "Basic abc"}},
		{" a = 1 , b=2,=skip,novalue", map[string]string{"a": "1", "b": "2"}},
		{"k=v=w", map[string]string{"k": "v=w"}},
	}
	for _, tt := range tests {
		got := parseHeaders(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("parseHeaders(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("parseHeaders(%q)[%q] = %q, want %q", tt.raw, k, got[k], v)
			}
		}
	}
}

func TestInitWithoutEndpoint(t *testing.T) {
	tel, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("expected no-op tracer and metrics")
	}
	tel.Metrics.RecordCommand(context.Background(), "get_tabs", OutcomeOK)
	tel.Shutdown(context.Background())
}

func TestInitRejectsBadEndpoint(t *testing.T) {
	if _, err := Init(context.Background(), Config{Endpoint: "localhost"}); err == nil {
		t.Error("expected error for endpoint without scheme and host")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordCommand(ctx, "x", OutcomeOK)
	m.RecordUnknownCommand(ctx)
	m.RecordUpdate(ctx, "x")
	m.RecordIdentify(ctx, IdentifyCreated)

	var tel *Telemetry
	tel.Shutdown(ctx)
}

func TestRecordIdentify(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(provider.Meter(meterName))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	m.RecordIdentify(ctx, IdentifyCreated)
	m.RecordIdentify(ctx, IdentifyCreated)
	m.RecordIdentify(ctx, IdentifyRaceLost)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "bridge.identify" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("bridge.identify data = %T", md.Data)
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				counts[outcome.AsString()] = dp.Value
			}
		}
	}
	if counts[IdentifyCreated] != 2 || counts[IdentifyRaceLost] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
