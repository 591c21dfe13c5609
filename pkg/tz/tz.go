// Package tz resolves the event time zone. tzdata is embedded so minimal images work.
package tz

import (
	"time"
	_ "time/tzdata"
)

// DefaultEventZone is the time zone event schedules are published in.
const DefaultEventZone = "America/Sao_Paulo"

// SaoPaulo is the America/Sao_Paulo location.
var SaoPaulo *time.Location

func init() {
	var err error
	SaoPaulo, err = time.LoadLocation(DefaultEventZone)
	if err != nil {
		panic("tz: load " + DefaultEventZone + ": " + err.Error())
	}
}

// Load returns the named location, or SaoPaulo for an empty name.
func Load(name string) (*time.Location, error) {
	if name == "" || name == DefaultEventZone {
		return SaoPaulo, nil
	}
	return time.LoadLocation(name)
}
