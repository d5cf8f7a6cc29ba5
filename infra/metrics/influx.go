package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fuelq/core/metrics"
	"github.com/kilianp07/fuelq/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes allocation events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAllocation writes one allocation_event point.
func (s *InfluxSink) RecordAllocation(ev coremetrics.AllocationEvent) error {
	p := write.NewPointWithMeasurement("allocation_event").
		AddTag("operation", ev.Operation).
		AddTag("outcome", ev.Outcome).
		AddTag("component", "allocation_engine")
	if ev.Station != "" {
		p = p.AddTag("station", ev.Station)
	}
	if ev.FuelType != "" {
		p = p.AddTag("fuel_type", string(ev.FuelType))
	}
	p = p.AddField("amount_l", round3(ev.Amount)).
		AddField("vehicles", ev.Vehicles).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordStockLevel writes a station_stock point.
func (s *InfluxSink) RecordStockLevel(ev coremetrics.StockLevelEvent) error {
	p := write.NewPointWithMeasurement("station_stock").
		AddTag("station", ev.Station).
		AddTag("fuel_type", string(ev.FuelType)).
		AddTag("cause", ev.Cause).
		AddField("current_l", round3(ev.Current)).
		AddField("reserved_l", round3(ev.Reserved)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordQueue writes an announced_queue point.
func (s *InfluxSink) RecordQueue(ev coremetrics.QueueEvent) error {
	p := write.NewPointWithMeasurement("announced_queue").
		AddTag("queue_id", ev.QueueID).
		AddTag("station", ev.Station).
		AddTag("fuel_type", string(ev.FuelType)).
		AddTag("state", string(ev.State)).
		AddField("vehicles", ev.Vehicles).
		AddField("remaining", ev.Remaining).
		AddField("selected_l", round3(ev.SelectedAmount)).
		AddField("filled_l", round3(ev.FilledAmount)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordNotification writes a notification_delivery point.
func (s *InfluxSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	p := write.NewPointWithMeasurement("notification_delivery").
		AddTag("channel", ev.Channel).
		AddTag("delivered", strconv.FormatBool(ev.Delivered)).
		AddField("recipient", ev.Recipient).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.write(p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
