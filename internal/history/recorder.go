package history

import (
	"log/slog"
	"time"

	"tuya-air/internal/gateway"
)

// Measurement is the InfluxDB measurement name of every recorded point.
const Measurement = "air_quality"

// PointWriter accepts points for asynchronous delivery.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time)
}

// Recorder writes every attribute_update to InfluxDB.
type Recorder struct {
	writer PointWriter
	logger *slog.Logger
	unsub  func()
}

// NewRecorder subscribes to the event bus.
func NewRecorder(w PointWriter, events *gateway.EventBus, logger *slog.Logger) *Recorder {
	r := &Recorder{writer: w, logger: logger.With("component", "history")}
	r.unsub = events.On(gateway.EventAttributeUpdate, r.record)
	return r
}

func (r *Recorder) record(e gateway.Event) {
	data, ok := e.Data.(map[string]interface{})
	if !ok {
		return
	}
	value, ok := data["value"].(float64)
	if !ok {
		return
	}
	tags := map[string]string{}
	for _, k := range []string{"ieee", "group", "attribute", "profile"} {
		if s, ok := data[k].(string); ok {
			tags[k] = s
		}
	}
	r.writer.WritePoint(Measurement, tags, map[string]interface{}{"value": value}, time.Now())
	r.logger.Debug("point queued", "ieee", tags["ieee"], "group", tags["group"])
}

// Stop unsubscribes from the event bus.
func (r *Recorder) Stop() {
	if r.unsub != nil {
		r.unsub()
	}
}
