package models

import (
	"errors"
	"strings"
	"testing"
)

func TestParseChannel(t *testing.T) {
	for n := -1; n <= 7; n++ {
		ch, err := ParseChannel(n)
		valid := n >= 1 && n <= 5
		if valid != (err == nil) {
			t.Fatalf("ParseChannel(%d) err=%v, want valid=%v", n, err, valid)
		}
		if !valid && !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("ParseChannel(%d) err=%v, want ErrInvalidChannel", n, err)
		}
		if valid && int(ch) != n {
			t.Fatalf("ParseChannel(%d) = %d", n, ch)
		}
	}
}

func TestChannelNames(t *testing.T) {
	ch := Channel(3)
	if ch.Column() != "sensor_3" {
		t.Errorf("Column() = %q", ch.Column())
	}
	if ch.Key() != "channel_3" {
		t.Errorf("Key() = %q", ch.Key())
	}
	if got := len(AllChannels()); got != NumChannels {
		t.Errorf("AllChannels() len = %d", got)
	}
}

func TestParseChannelKey(t *testing.T) {
	tests := []struct {
		key     string
		want    Channel
		ok      bool
		wantErr error
	}{
		{"channel_1", 1, true, nil},
		{"channel5", 5, true, nil},
		{"sensor_2", 2, true, nil},
		{"sensor4", 4, true, nil},
		{"temperature", 0, false, nil},
		{"id", 0, false, nil},
		{"Sensor_1", 0, false, nil},
		{"sensor_6", 0, true, ErrInvalidChannel},
		{"channel_0", 0, true, ErrInvalidChannel},
		{"sensor_id", 0, true, ErrUnrecognizedKey},
		{"channel", 0, true, ErrUnrecognizedKey},
	}
	for _, tt := range tests {
		ch, ok, err := ParseChannelKey(tt.key)
		if ok != tt.ok || (err != nil) != (tt.wantErr != nil) {
			t.Fatalf("ParseChannelKey(%q) ok=%v err=%v; want ok=%v err=%v", tt.key, ok, err, tt.ok, tt.wantErr)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Fatalf("ParseChannelKey(%q) err=%v; want %v", tt.key, err, tt.wantErr)
		}
		if errors.Is(err, ErrUnrecognizedKey) && strings.Contains(err.Error(), "between 1 and 5") {
			t.Fatalf("ParseChannelKey(%q) err=%q mentions the index range", tt.key, err)
		}
		if ch != tt.want {
			t.Fatalf("ParseChannelKey(%q) = %d; want %d", tt.key, ch, tt.want)
		}
	}
}

func TestChannelsGetSet(t *testing.T) {
	var cs Channels
	if !cs.Empty() {
		t.Fatal("zero Channels should be empty")
	}
	cs.Set(2, 21.5)
	cs.Set(9, 1) // ignored
	if v, ok := cs.Get(2); !ok || v != 21.5 {
		t.Fatalf("Get(2) = %v, %v", v, ok)
	}
	if _, ok := cs.Get(1); ok {
		t.Fatal("Get(1) should be unset")
	}
	if _, ok := cs.Get(0); ok {
		t.Fatal("Get(0) should be unset")
	}
	if cs.Empty() {
		t.Fatal("Channels with a value should not be empty")
	}
}
