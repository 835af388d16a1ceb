package negotiate

import "testing"

func TestOpusCapabilityFields(t *testing.T) {
	c := OpusCapability()
	if c.ClockRate != 48000 {
		t.Errorf("ClockRate = %d, want 48000", c.ClockRate)
	}
	if c.Channels != 1 {
		t.Errorf("Channels = %d, want 1", c.Channels)
	}
	if c.PayloadType != 111 {
		t.Errorf("PayloadType = %d, want 111", c.PayloadType)
	}
}

func TestCapabilityString(t *testing.T) {
	c := OpusCapability()
	got := c.String()
	want := "111 opus/48000/1"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
