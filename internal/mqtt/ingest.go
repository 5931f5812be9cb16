//go:build !no_mqtt

package mqtt

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"tuya-air/internal/gateway"
	"tuya-air/internal/metrics"
	"tuya-air/internal/source"
	"tuya-air/internal/zcl/clusters"
)

const ingestSource = "mqtt"

// ingestMessage is a report published on <prefix>/<ieee>/tuya. Either
// Payload (hex encoded 0xEF00 payload) or DataPoints is set.
type ingestMessage struct {
	Payload    string            `json:"payload"`
	DataPoints []ingestDataPoint `json:"datapoints"`
	LQI        uint8             `json:"linkquality"`
}

type ingestDataPoint struct {
	DP    *uint8   `json:"dp"`
	Value *float64 `json:"value"`
}

func (b *Bridge) ingestTopic() string {
	return b.prefix + "/+/tuya"
}

func (b *Bridge) subscribeIngest() {
	token := b.client.Subscribe(b.ingestTopic(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := b.handleIngest(msg.Topic(), msg.Payload()); err != nil {
			b.logger.Warn("ingest", "topic", msg.Topic(), "err", err)
		}
	})
	go func() {
		if token.Wait() && token.Error() != nil {
			b.logger.Error("subscribe ingest", "topic", b.ingestTopic(), "err", token.Error())
		}
	}()
}

// ieeeFromTopic extracts the device segment of <prefix>/<ieee>/tuya.
func (b *Bridge) ieeeFromTopic(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/")
	if !ok {
		return "", fmt.Errorf("topic %q outside prefix", topic)
	}
	seg, ok := strings.CutSuffix(rest, "/tuya")
	if !ok || seg == "" || strings.Contains(seg, "/") {
		return "", fmt.Errorf("topic %q is not an ingest topic", topic)
	}
	return gateway.NormalizeIEEE(seg)
}

// handleIngest feeds one ingest message into the gateway.
func (b *Bridge) handleIngest(topic string, payload []byte) error {
	if b.ctx.Err() != nil {
		return nil
	}
	ieee, err := b.ieeeFromTopic(topic)
	if err != nil {
		return err
	}

	var msg ingestMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.ObserveFrame(ingestSource, err)
		return fmt.Errorf("decode message: %w", err)
	}

	if msg.Payload != "" {
		raw, err := hex.DecodeString(msg.Payload)
		if err != nil {
			metrics.ObserveFrame(ingestSource, err)
			return fmt.Errorf("decode payload hex: %w", err)
		}
		_, err = b.gw.HandleClusterCommand(source.ClusterCommandEvent{
			Source:    ingestSource,
			IEEE:      ieee,
			Endpoint:  1,
			ClusterID: clusters.TuyaClusterID,
			CommandID: clusters.TuyaCmdDataReport,
			Payload:   raw,
			LQI:       msg.LQI,
		})
		return err
	}

	if len(msg.DataPoints) == 0 {
		err := errors.New("message has neither payload nor datapoints")
		metrics.ObserveFrame(ingestSource, err)
		return err
	}
	metrics.ObserveFrame(ingestSource, nil)

	var errs []error
	for i, dp := range msg.DataPoints {
		if dp.DP == nil || dp.Value == nil {
			errs = append(errs, fmt.Errorf("datapoint %d: dp and value are required", i))
			continue
		}
		if _, err := b.gw.OnDataPointReport(ieee, *dp.DP, *dp.Value); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}
