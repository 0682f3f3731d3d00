package api

import "time"

// ------------------------------------------------------------------------------------------------
// General naming conventions:
// ------------------------------------------------------------------------------------------------
// - ...Request - represents a payload sent to the testgen backend or to the local run API.
// - ...Response - represents a payload returned by the testgen backend.
// - ...Snapshot - represents an immutable copy of controller owned state.
// - ...List - represents a list of snapshots or backend records
// - ...Error - represents an error response
// ------------------------------------------------------------------------------------------------

// Error represents an error response of the local run API
type Error struct {
	MessageCode string `json:"message_code"`
	Message     string `json:"message"`
	Trace       string `json:"trace"`
}

type HRef struct {
	Href string `json:"href"`
}

// Page represents generic pagination schema
type Page struct {
	First      *HRef `json:"first"`
	Next       *HRef `json:"next,omitempty"`
	Limit      int   `json:"limit"`
	TotalCount int   `json:"total_count"`
}

// for marshalling and unmarshalling
type DateTime string

func DateTimeToString(date time.Time) DateTime {
	return DateTime(date.Format("2006-01-02T15:04:05Z07:00"))
}

func DateTimeFromString(date DateTime) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05Z07:00", string(date))
}
