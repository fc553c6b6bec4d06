package domain

import "time"

// Reading is one archived telemetry sample. Only finite values are archived;
// gaps in the live window are not persisted.
type Reading struct {
	Session      string    `json:"session"`
	Channel      string    `json:"channel"`
	Seq          int64     `json:"seq"`
	Value        float64   `json:"value"`
	Timestamp    time.Time `json:"ts"`
	TransformVer uint16    `json:"transform_ver"`
}
