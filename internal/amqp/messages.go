package amqp

import (
	"encoding/json"
	"time"
)

// Event sources. They say which path replaced the dataset.
const (
	SourceEdit        = "edit"
	SourceImportImage = "import-image"
	SourceImportScan  = "import-scan"
	SourceImportText  = "import-text"
)

// DatasetEvent announces that the stored dataset was replaced. It carries
// only the revision and counts; consumers fetch the document themselves.
type DatasetEvent struct {
	Revision   int64     `json:"revision"`
	Source     string    `json:"source"`
	Categories int       `json:"categories"`
	Items      int       `json:"items"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewDatasetEvent creates an event for a replace that produced revision.
func NewDatasetEvent(revision int64, source string, categories, items int) *DatasetEvent {
	return &DatasetEvent{
		Revision:   revision,
		Source:     source,
		Categories: categories,
		Items:      items,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *DatasetEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// DatasetEventFromJSON creates an event from JSON bytes
func DatasetEventFromJSON(data []byte) (*DatasetEvent, error) {
	var ev DatasetEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
