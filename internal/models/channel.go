package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NumChannels is the fixed number of sensor inputs tracked per reading.
const NumChannels = 5

// ErrUnrecognizedKey is a channel/sensor prefixed key without a numeric index, e.g. "sensor_location".
var (
	ErrInvalidChannel  = errors.New("channel must be between 1 and 5")
	ErrNoChannels      = errors.New("no channel values supplied")
	ErrUnrecognizedKey = errors.New("unrecognized channel key")
)

// Channel is a 1-based sensor index. Values obtained from ParseChannel are always valid.
type Channel int

var (
	channelColumns = [NumChannels]string{"sensor_1", "sensor_2", "sensor_3", "sensor_4", "sensor_5"}
	channelKeys    = [NumChannels]string{"channel_1", "channel_2", "channel_3", "channel_4", "channel_5"}

	// Accepted spellings on input: channel_2, channel2, sensor_2, sensor2.
	channelKeyPrefixes = []string{"channel", "sensor"}
)

func ParseChannel(n int) (Channel, error) {
	if n < 1 || n > NumChannels {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidChannel, n)
	}
	return Channel(n), nil
}

// AllChannels returns channels 1..5 in order.
func AllChannels() []Channel {
	out := make([]Channel, NumChannels)
	for i := range out {
		out[i] = Channel(i + 1)
	}
	return out
}

func (c Channel) Valid() bool {
	return c >= 1 && c <= NumChannels
}

// Column is the storage column backing the channel. c must be valid.
func (c Channel) Column() string {
	return channelColumns[c-1]
}

// Key is the JSON field name used on the wire. c must be valid.
func (c Channel) Key() string {
	return channelKeys[c-1]
}

func (c Channel) String() string {
	return strconv.Itoa(int(c))
}

// ParseChannelKey maps a request key such as "channel_2" or "sensor2" to its channel.
// ok is false when the key carries no channel prefix. A prefixed key with a non-numeric
// suffix yields ErrUnrecognizedKey, a numeric suffix outside 1..5 ErrInvalidChannel.
func ParseChannelKey(key string) (ch Channel, ok bool, err error) {
	for _, prefix := range channelKeyPrefixes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		suffix := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "_")
		n, convErr := strconv.Atoi(suffix)
		if convErr != nil {
			return 0, true, fmt.Errorf("%w %q, use channel_1..channel_5", ErrUnrecognizedKey, key)
		}
		ch, err = ParseChannel(n)
		if err != nil {
			return 0, true, fmt.Errorf("key %q: %w", key, err)
		}
		return ch, true, nil
	}
	return 0, false, nil
}

// Channels holds one optional value per sensor, indexed by Channel-1.
type Channels [NumChannels]*float64

func (cs *Channels) Get(c Channel) (float64, bool) {
	if !c.Valid() || cs[c-1] == nil {
		return 0, false
	}
	return *cs[c-1], true
}

func (cs *Channels) Set(c Channel, v float64) {
	if !c.Valid() {
		return
	}
	cs[c-1] = &v
}

// Empty reports whether no channel holds a value.
func (cs *Channels) Empty() bool {
	for _, v := range cs {
		if v != nil {
			return false
		}
	}
	return true
}

// ChannelValues is a sparse set of channel assignments used for inserts and updates.
type ChannelValues map[Channel]float64
