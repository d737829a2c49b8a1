package forecast

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/esgrade/internal/domain"
)

// modelState is the serialized form of a TrainedModel. Everything Predict
// needs is here: config, the series snapshot, and the fitted members.
type modelState struct {
	Seed            int64              `msgpack:"seed"`
	EnsembleSize    int                `msgpack:"ensemble_size"`
	FeatureFraction float64            `msgpack:"feature_fraction"`
	RidgeLambda     float64            `msgpack:"ridge_lambda"`
	Z               float64            `msgpack:"z"`
	Series          []statePoint       `msgpack:"series"`
	Ensembles       map[string]ensemble `msgpack:"ensembles"`
}

type statePoint struct {
	YearMonth string  `msgpack:"ym"`
	E         float64 `msgpack:"e"`
	S         float64 `msgpack:"s"`
	G         float64 `msgpack:"g"`
}

// EncodeState serializes the model for the cache database.
func (m *TrainedModel) EncodeState() ([]byte, error) {
	state := modelState{
		Seed:            m.cfg.Seed,
		EnsembleSize:    m.cfg.EnsembleSize,
		FeatureFraction: m.cfg.FeatureFraction,
		RidgeLambda:     m.cfg.RidgeLambda,
		Z:               m.cfg.Z,
		Series:          make([]statePoint, len(m.series)),
		Ensembles:       make(map[string]ensemble, len(m.ensembles)),
	}

	for i, p := range m.series {
		state.Series[i] = statePoint{YearMonth: p.YearMonth, E: p.E, S: p.S, G: p.G}
	}
	for pillar, ens := range m.ensembles {
		state.Ensembles[string(pillar)] = ens
	}

	data, err := msgpack.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode model state: %w", err)
	}
	return data, nil
}

// DecodeState restores a model serialized by EncodeState.
func DecodeState(data []byte) (*TrainedModel, error) {
	var state modelState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode model state: %w", err)
	}

	if len(state.Series) == 0 {
		return nil, fmt.Errorf("decode model state: empty series snapshot")
	}

	ensembles := make(map[domain.Pillar]ensemble, len(domain.Pillars))
	for _, p := range domain.Pillars {
		ens, ok := state.Ensembles[string(p)]
		if !ok || len(ens.Members) == 0 {
			return nil, fmt.Errorf("decode model state: missing %s ensemble", p)
		}
		ensembles[p] = ens
	}

	series := make(domain.HistoricalSeries, len(state.Series))
	for i, p := range state.Series {
		series[i] = domain.HistoricalPoint{YearMonth: p.YearMonth, E: p.E, S: p.S, G: p.G}
	}

	return &TrainedModel{
		cfg: Config{
			Seed:            state.Seed,
			EnsembleSize:    state.EnsembleSize,
			FeatureFraction: state.FeatureFraction,
			RidgeLambda:     state.RidgeLambda,
			Z:               state.Z,
		},
		series:    series,
		ensembles: ensembles,
	}, nil
}
