// Package projections turns recent performance signals into the expected
// next-gameweek points the engine consumes. The engine itself treats
// projections as supplied input; this package is an optional producer.
package projections

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"fpl-optimizer/internal/catalog"
	"fpl-optimizer/pkg/logger"
)

// Weights parameterizes the projection blend. All values are configuration.
type Weights struct {
	// PPGWeight and FormWeight blend season points-per-game against recent
	// form into a per-minute scoring estimate.
	PPGWeight  float64 `mapstructure:"ppg_weight"`
	FormWeight float64 `mapstructure:"form_weight"`
	// MinutesScale converts appearance-based averages to a per-minute rate.
	MinutesScale float64 `mapstructure:"minutes_scale"`
	// FixtureBump multiplies the projection by fixture difficulty (1..5).
	FixtureBump map[int]float64 `mapstructure:"fixture_bump"`
	// StatusMinutes maps availability flags to expected minutes.
	StatusMinutes map[string]float64 `mapstructure:"status_minutes"`
	// PositionBias adds a flat per-position adjustment (bonus-point skew).
	PositionBias map[catalog.Position]float64 `mapstructure:"position_bias"`
}

// DefaultWeights returns a conservative default blend.
func DefaultWeights() Weights {
	return Weights{
		PPGWeight:    0.7,
		FormWeight:   0.3,
		MinutesScale: 75.0,
		FixtureBump: map[int]float64{
			1: 1.15,
			2: 1.08,
			3: 1.0,
			4: 0.92,
			5: 0.85,
		},
		StatusMinutes: map[string]float64{
			"a": 90,
			"d": 45,
		},
		PositionBias: map[catalog.Position]float64{
			catalog.Goalkeeper: 0.2,
			catalog.Defender:   0.3,
			catalog.Midfielder: 0.1,
			catalog.Forward:    0.0,
		},
	}
}

// PlayerForm is the raw performance record for one player.
type PlayerForm struct {
	ID            int     `json:"element_id"`
	Name          string  `json:"name"`
	Position      string  `json:"position,omitempty"`
	ElementType   int     `json:"element_type,omitempty"`
	Team          int     `json:"team"`
	PriceTenths   int     `json:"price_tenths"`
	Status        string  `json:"status"`
	PointsPerGame float64 `json:"points_per_game"`
	Form          float64 `json:"form"`
}

// Fixture is one scheduled match with the provider's difficulty ratings.
type Fixture struct {
	FixtureID      int `json:"fixture_id"`
	Event          int `json:"event"`
	HomeTeam       int `json:"team_h"`
	AwayTeam       int `json:"team_a"`
	HomeDifficulty int `json:"team_h_difficulty"`
	AwayDifficulty int `json:"team_a_difficulty"`
}

// nextFixtureDifficulty resolves each team's next fixture difficulty,
// keeping the earliest fixture per team. Teams without one default to 3.
func nextFixtureDifficulty(fixtures []Fixture) map[int]int {
	ordered := make([]Fixture, len(fixtures))
	copy(ordered, fixtures)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Event != ordered[j].Event {
			return ordered[i].Event < ordered[j].Event
		}
		return ordered[i].FixtureID < ordered[j].FixtureID
	})

	diff := make(map[int]int)
	for _, fx := range ordered {
		if _, ok := diff[fx.HomeTeam]; !ok {
			diff[fx.HomeTeam] = fx.HomeDifficulty
		}
		if _, ok := diff[fx.AwayTeam]; !ok {
			diff[fx.AwayTeam] = fx.AwayDifficulty
		}
	}
	return diff
}

// ProjectNextGameweek computes expected next-gameweek points for every
// player: expected minutes times a weighted per-minute estimate times the
// fixture multiplier, plus the position bias. The output feeds
// catalog.Load unchanged.
func ProjectNextGameweek(players []PlayerForm, fixtures []Fixture, w Weights) []catalog.RawRecord {
	difficulty := nextFixtureDifficulty(fixtures)

	records := make([]catalog.RawRecord, 0, len(players))
	points := make([]float64, 0, len(players))
	for _, pf := range players {
		diff, ok := difficulty[pf.Team]
		if !ok {
			diff = 3
		}
		mult, ok := w.FixtureBump[diff]
		if !ok {
			mult = 1.0
		}
		minutes := w.StatusMinutes[pf.Status]
		perMinute := (w.PPGWeight*pf.PointsPerGame + w.FormWeight*pf.Form) / w.MinutesScale

		bias := 0.0
		if pos, ok := catalog.ParsePosition(pf.Position, pf.ElementType); ok {
			bias = w.PositionBias[pos]
		}

		ep := minutes*perMinute*mult + bias
		records = append(records, catalog.RawRecord{
			ID:              pf.ID,
			Name:            pf.Name,
			Position:        pf.Position,
			ElementType:     pf.ElementType,
			Team:            pf.Team,
			PriceTenths:     pf.PriceTenths,
			ProjectedPoints: ep,
			Status:          pf.Status,
		})
		points = append(points, ep)
	}

	if len(points) > 0 {
		mean, std := stat.MeanStdDev(points, nil)
		logger.WithService("projections").WithFields(logrus.Fields{
			"players":    len(points),
			"mean_ep":    mean,
			"stddev_ep":  std,
			"fixtures":   len(fixtures),
			"with_fix":   len(difficulty),
		}).Debug("Projected next gameweek")
	}

	return records
}
