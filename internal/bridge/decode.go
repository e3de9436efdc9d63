// Package bridge turns ADC readings published over MQTT into API submissions.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sensorhub/internal/models"
)

var (
	ErrUnmappedTopic = errors.New("topic has no numeric channel segment")
	ErrBadPayload    = errors.New("payload carries no numeric value")
)

// Decoder maps a publisher's topic and payload onto a store channel. Topics end
// in the publisher's channel number, e.g. "ads1115/channel/0".
type Decoder struct {
	// ChannelOffset is added to the topic channel. ADS1115 numbers inputs 0..3.
	ChannelOffset int
	// ValueField names the JSON field holding the reading.
	ValueField string
}

func (d Decoder) Decode(topic string, payload []byte) (models.Channel, float64, error) {
	ch, err := d.channel(topic)
	if err != nil {
		return 0, 0, err
	}
	v, err := d.value(payload)
	if err != nil {
		return 0, 0, err
	}
	return ch, v, nil
}

func (d Decoder) channel(topic string) (models.Channel, error) {
	topic = strings.TrimRight(topic, "/")
	last := topic[strings.LastIndex(topic, "/")+1:]
	n, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnmappedTopic, topic)
	}
	ch, err := models.ParseChannel(n + d.ChannelOffset)
	if err != nil {
		return 0, fmt.Errorf("topic %q: %w", topic, err)
	}
	return ch, nil
}

func (d Decoder) value(payload []byte) (float64, error) {
	trimmed := strings.TrimSpace(string(payload))
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	raw, ok := fields[d.ValueField]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrBadPayload, d.ValueField)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: field %q: %v", ErrBadPayload, d.ValueField, err)
	}
	return f, nil
}
