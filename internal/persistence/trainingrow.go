package persistence

import (
	"encoding/json"

	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/cc-sentinel/sentinel/internal/message"
)

// decodeTrainingRow rebuilds a TrainingRow from its stored columns. The
// type key itself is not parsed back; message.TypeOf recomputes it from
// the stored message, which is the single source of truth for a type.
func decodeTrainingRow(label int, featuresBlob, msgBlob []byte) (extraction.TrainingRow, error) {
	var features map[string]any
	if err := json.Unmarshal(featuresBlob, &features); err != nil {
		return extraction.TrainingRow{}, err
	}
	var msg message.HTTP
	if err := json.Unmarshal(msgBlob, &msg); err != nil {
		return extraction.TrainingRow{}, err
	}
	return extraction.TrainingRow{
		Features: features,
		Message:  &msg,
		Type:     message.TypeOf(&msg),
		Label:    label,
	}, nil
}
