package refresh

import (
	"fmt"
	"strings"
	"time"
)

// Event is a dataset change notice published by the platform's ingest
// pipeline. Any accepted event schedules a bounds reload; the payload
// only decides whether the event is worth reacting to.
type Event struct {
	Version   int       `json:"version"`
	Op        string    `json:"op"`
	DatasetID string    `json:"datasetId"`
	TS        time.Time `json:"ts"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "created", "updated", "removed":
	default:
		return fmt.Errorf("op must be created|updated|removed")
	}
	if strings.TrimSpace(e.DatasetID) == "" {
		return fmt.Errorf("datasetId is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
