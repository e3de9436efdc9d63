package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sensorhub/internal/models"
)

// ExtractChannelValues keeps the non-null entries whose keys name a channel
// ("channel_2", "sensor_2", ...) and ignores every other key. Null entries are
// dropped before their keys are looked at.
func ExtractChannelValues(payload map[string]interface{}) (models.ChannelValues, error) {
	values := make(models.ChannelValues, len(payload))
	seen := make(map[models.Channel]string, len(payload))

	for key, raw := range payload {
		if raw == nil {
			continue
		}
		ch, ok, err := models.ParseChannelKey(key)
		if err != nil {
			return nil, invalid(err)
		}
		if !ok {
			continue
		}
		if prev, dup := seen[ch]; dup {
			return nil, invalid(fmt.Errorf("channel %d supplied twice (%q and %q)", ch, prev, key))
		}
		v, err := toFloat(raw)
		if err != nil {
			return nil, invalid(fmt.Errorf("key %q: %w", key, err))
		}
		seen[ch] = key
		values[ch] = v
	}
	return values, nil
}

func toFloat(raw interface{}) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", x)
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", x)
		}
		v = f
	default:
		return 0, fmt.Errorf("value of type %T is not a number", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %v is not finite", v)
	}
	return v, nil
}
