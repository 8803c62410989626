package storage

import (
	"testing"

	"github.com/kofiasante/accracast/pkg/features"
)

func TestKey_Canonical(t *testing.T) {
	cond := features.Conditions{
		Hour:      17,
		Weekday:   4,
		RainMm:    3.2,
		TempC:     31.5,
		Humidity:  80,
		EventType: "concert",
	}

	got := Key("Circle Rd", 12.5, cond)
	want := "Circle Rd|d=12.50|h=17|w=4|rain=3.20|temp=31.5|hum=80|event=concert"
	if got != want {
		t.Fatalf("Key = %q, want %q", got, want)
	}
}

func TestKey_RoundingCollapsesNoise(t *testing.T) {
	// Sub-precision float noise must not produce distinct keys.
	a := features.Conditions{Hour: 8, Weekday: 1, RainMm: 1.0, TempC: 28.0, Humidity: 60, EventType: "none"}
	b := a
	b.RainMm = 1.0004
	b.TempC = 28.04

	if Key("Circle Rd", 10.0, a) != Key("Circle Rd", 10.001, b) {
		t.Error("keys should collapse sub-precision differences")
	}
}

func TestKey_DistinguishesRequests(t *testing.T) {
	base := features.Conditions{Hour: 8, Weekday: 1, RainMm: 0, TempC: 28, Humidity: 60, EventType: "none"}

	baseKey := Key("Circle Rd", 10, base)

	variants := []func() string{
		func() string { return Key("Spintex Rd", 10, base) },
		func() string { return Key("Circle Rd", 11, base) },
		func() string { c := base; c.Hour = 9; return Key("Circle Rd", 10, c) },
		func() string { c := base; c.Weekday = 2; return Key("Circle Rd", 10, c) },
		func() string { c := base; c.RainMm = 2; return Key("Circle Rd", 10, c) },
		func() string { c := base; c.TempC = 30; return Key("Circle Rd", 10, c) },
		func() string { c := base; c.Humidity = 80; return Key("Circle Rd", 10, c) },
		func() string { c := base; c.EventType = "concert"; return Key("Circle Rd", 10, c) },
	}
	for i, v := range variants {
		if v() == baseKey {
			t.Errorf("variant %d produced the same key as the base request", i)
		}
	}
}
