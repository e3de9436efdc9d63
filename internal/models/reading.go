package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SensorData is the persisted row. Table and column names match the legacy schema.
type SensorData struct {
	ID        uint      `gorm:"primaryKey"`
	Sensor1   *float64  `gorm:"column:sensor_1"`
	Sensor2   *float64  `gorm:"column:sensor_2"`
	Sensor3   *float64  `gorm:"column:sensor_3"`
	Sensor4   *float64  `gorm:"column:sensor_4"`
	Sensor5   *float64  `gorm:"column:sensor_5"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (SensorData) TableName() string {
	return "sensor_data"
}

func (d *SensorData) slots() [NumChannels]**float64 {
	return [NumChannels]**float64{&d.Sensor1, &d.Sensor2, &d.Sensor3, &d.Sensor4, &d.Sensor5}
}

// NewSensorData builds a row holding the given channel values.
func NewSensorData(values ChannelValues) *SensorData {
	row := &SensorData{}
	row.Apply(values)
	return row
}

// Apply overwrites the channels present in values and leaves the others untouched.
func (d *SensorData) Apply(values ChannelValues) {
	slots := d.slots()
	for ch, v := range values {
		if !ch.Valid() {
			continue
		}
		*slots[ch-1] = &v
	}
}

func (d *SensorData) Reading() Reading {
	r := Reading{ID: d.ID, CreatedAt: d.CreatedAt}
	for i, slot := range d.slots() {
		if *slot != nil {
			v := **slot
			r.Channels[i] = &v
		}
	}
	return r
}

// Reading is one stored record: an id, up to five channel values and a creation timestamp.
type Reading struct {
	ID        uint
	Channels  Channels
	CreatedAt time.Time
}

type readingJSON struct {
	ID        uint      `json:"id"`
	Channel1  *float64  `json:"channel_1"`
	Channel2  *float64  `json:"channel_2"`
	Channel3  *float64  `json:"channel_3"`
	Channel4  *float64  `json:"channel_4"`
	Channel5  *float64  `json:"channel_5"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		ID:        r.ID,
		Channel1:  r.Channels[0],
		Channel2:  r.Channels[1],
		Channel3:  r.Channels[2],
		Channel4:  r.Channels[3],
		Channel5:  r.Channels[4],
		CreatedAt: r.CreatedAt,
	})
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	var aux readingJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ID = aux.ID
	r.CreatedAt = aux.CreatedAt
	r.Channels = Channels{aux.Channel1, aux.Channel2, aux.Channel3, aux.Channel4, aux.Channel5}
	return nil
}

// ChannelPoint is a reading projected onto a single channel.
type ChannelPoint struct {
	ID        uint
	Channel   Channel
	Value     float64
	CreatedAt time.Time
}

func (p ChannelPoint) MarshalJSON() ([]byte, error) {
	if !p.Channel.Valid() {
		return nil, fmt.Errorf("marshal point %d: %w", p.ID, ErrInvalidChannel)
	}
	return json.Marshal(map[string]interface{}{
		"id":            p.ID,
		p.Channel.Key(): p.Value,
		"created_at":    p.CreatedAt,
	})
}

func (p *ChannelPoint) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var out ChannelPoint
	for key, raw := range fields {
		switch key {
		case "id":
			if err := json.Unmarshal(raw, &out.ID); err != nil {
				return fmt.Errorf("decode id: %w", err)
			}
		case "created_at":
			if err := json.Unmarshal(raw, &out.CreatedAt); err != nil {
				return fmt.Errorf("decode created_at: %w", err)
			}
		default:
			ch, ok, err := ParseChannelKey(key)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if out.Channel.Valid() {
				return fmt.Errorf("point carries more than one channel: %q", key)
			}
			if err := json.Unmarshal(raw, &out.Value); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			out.Channel = ch
		}
	}
	if !out.Channel.Valid() {
		return fmt.Errorf("point without channel value: %w", ErrInvalidChannel)
	}
	*p = out
	return nil
}

// ChannelStats summarizes one channel over a period.
type ChannelStats struct {
	Channel Channel `json:"channel"`
	Count   int64   `json:"count"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}
