package storage

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"periplus/internal/model"
)

func sampleState() model.RunState {
	best := model.CandidateRecord{Order: []int{2, 0, 1}, Fitness: 0.04, Distance: 24}
	return model.RunState{
		SessionID:  "codec-session",
		Generation: 17,
		Config: model.RunConfig{
			PopulationSize:     30,
			MaxGenerations:     200,
			MutationRate:       0.05,
			CrossoverRate:      0.9,
			ElitismRate:        0.1,
			TournamentSize:     4,
			StagnationLimit:    50,
			ReportInterval:     10,
			CheckpointInterval: 25,
			Seed:               42,
			Crossover:          "order",
			Mutation:           "swap",
			Fitness:            "inverse_distance",
		},
		Cities: []model.City{
			{ID: 0, Name: "alpha", X: 0, Y: 0},
			{ID: 1, Name: "beta", X: 3, Y: 4},
			{ID: 2, X: 6, Y: 0},
		},
		Population: []model.CandidateRecord{
			{Order: []int{0, 1, 2}, Fitness: 0.04, Distance: 24},
			{Order: []int{2, 1, 0}, Fitness: 0.04, Distance: 24},
		},
		Best:                 &best,
		ConvergenceHistory:   []float64{0.01, 0.02, 0.04},
		ElapsedMillis:        1234,
		GenerationsNoImprove: 3,
		LastImprovement:      14,
		Status:               model.StatusPaused,
	}
}

func TestEncodeDecodeRoundTripsExactly(t *testing.T) {
	original := sampleState()
	payload, err := EncodeRunState(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeRunState(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// The codec stamps the current versions; everything else round-trips
	// bit for bit.
	original.SchemaVersion = CurrentSchemaVersion
	original.CodecVersion = CurrentCodecVersion
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, original)
	}
}

func TestEncodeDecodePreservesNilBest(t *testing.T) {
	state := sampleState()
	state.Best = nil

	payload, err := EncodeRunState(state)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRunState(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Best != nil {
		t.Fatalf("nil best came back as %+v", decoded.Best)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	state := sampleState()
	payload, err := EncodeRunState(state)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, field := range []string{"schema_version", "codec_version"} {
		tampered := make(map[string]any, len(raw))
		for k, v := range raw {
			tampered[k] = v
		}
		tampered[field] = 99

		data, err := json.Marshal(tampered)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if _, err := DecodeRunState(data); !errors.Is(err, ErrVersionMismatch) {
			t.Fatalf("%s=99: expected ErrVersionMismatch, got %v", field, err)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeRunState([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
