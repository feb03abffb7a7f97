package storage

import (
	"encoding/json"
	"errors"

	"periplus/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// EncodeRunState stamps the current record versions and marshals the state.
// Decode of the produced payload round-trips exactly.
func EncodeRunState(state model.RunState) ([]byte, error) {
	state.SchemaVersion = CurrentSchemaVersion
	state.CodecVersion = CurrentCodecVersion
	return json.Marshal(state)
}

func DecodeRunState(data []byte) (model.RunState, error) {
	var state model.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.RunState{}, err
	}
	if state.SchemaVersion != CurrentSchemaVersion || state.CodecVersion != CurrentCodecVersion {
		return model.RunState{}, ErrVersionMismatch
	}
	return state, nil
}
