package models

import (
	"fmt"
	"time"
)

// AnomalyType represents the type of anomaly detected in a dataset
type AnomalyType string

const (
	AnomalyTypeLogicError  AnomalyType = "logic_error"  // Values that contradict each other within a row
	AnomalyTypeSequenceGap AnomalyType = "sequence_gap" // Missing days inside one symbol's series
)

// Anomaly describes a suspicious row or run of rows. Anomalies are reported, never
// used to drop data.
type Anomaly struct {
	Type        AnomalyType `json:"type"`
	Symbol      string      `json:"symbol"`
	Date        time.Time   `json:"date"`
	Description string      `json:"description"`
}

// String returns a human-readable representation of the anomaly.
func (a Anomaly) String() string {
	return fmt.Sprintf("%s %s %s: %s", a.Type, a.Symbol, a.Date.Format(DateLayout), a.Description)
}
