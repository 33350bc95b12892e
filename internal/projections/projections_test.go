package projections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectNextGameweek_Blend(t *testing.T) {
	players := []PlayerForm{
		{ID: 1, Name: "Gabriel", Position: "DEF", Team: 1, PriceTenths: 60, Status: "a", PointsPerGame: 3.0, Form: 6.0},
	}
	fixtures := []Fixture{
		{FixtureID: 10, Event: 5, HomeTeam: 1, AwayTeam: 2, HomeDifficulty: 2, AwayDifficulty: 4},
	}

	records := ProjectNextGameweek(players, fixtures, DefaultWeights())
	require.Len(t, records, 1)

	// 90 minutes * ((0.7*3.0 + 0.3*6.0)/75) * 1.08 + 0.3 defender bias.
	assert.InDelta(t, 5.3544, records[0].ProjectedPoints, 1e-9)
	assert.Equal(t, 1, records[0].ID)
	assert.Equal(t, "a", records[0].Status)
	assert.Equal(t, 60, records[0].PriceTenths)
}

func TestProjectNextGameweek_DoubtfulHalvesMinutes(t *testing.T) {
	players := []PlayerForm{
		{ID: 1, Position: "MID", Team: 1, Status: "a", PointsPerGame: 4.0, Form: 4.0},
		{ID: 2, Position: "MID", Team: 1, Status: "d", PointsPerGame: 4.0, Form: 4.0},
	}

	records := ProjectNextGameweek(players, nil, DefaultWeights())
	require.Len(t, records, 2)

	// Strip the 0.1 midfielder bias; what remains scales with minutes.
	fit := records[0].ProjectedPoints - 0.1
	doubtful := records[1].ProjectedPoints - 0.1
	assert.InDelta(t, fit/2, doubtful, 1e-9)
}

func TestProjectNextGameweek_UnavailableScoresBiasOnly(t *testing.T) {
	players := []PlayerForm{
		{ID: 1, Position: "DEF", Team: 1, Status: "i", PointsPerGame: 5.0, Form: 8.0},
	}

	records := ProjectNextGameweek(players, nil, DefaultWeights())
	require.Len(t, records, 1)

	// Injured means zero expected minutes; only the position bias remains.
	assert.InDelta(t, 0.3, records[0].ProjectedPoints, 1e-9)
}

func TestProjectNextGameweek_UsesEarliestFixture(t *testing.T) {
	players := []PlayerForm{
		{ID: 1, Position: "FWD", Team: 3, Status: "a", PointsPerGame: 5.0, Form: 5.0},
	}
	fixtures := []Fixture{
		{FixtureID: 20, Event: 7, HomeTeam: 3, AwayTeam: 4, HomeDifficulty: 5, AwayDifficulty: 2},
		{FixtureID: 11, Event: 6, HomeTeam: 5, AwayTeam: 3, HomeDifficulty: 1, AwayDifficulty: 1},
	}

	records := ProjectNextGameweek(players, fixtures, DefaultWeights())
	require.Len(t, records, 1)

	// Event 6 comes first: away difficulty 1 applies the 1.15 bump, not the
	// 0.85 from the later hard fixture.
	expected := 90 * ((0.7*5.0 + 0.3*5.0) / 75) * 1.15
	assert.InDelta(t, expected, records[0].ProjectedPoints, 1e-9)
}

func TestProjectNextGameweek_NoFixtureDefaultsNeutral(t *testing.T) {
	players := []PlayerForm{
		{ID: 1, Position: "FWD", Team: 9, Status: "a", PointsPerGame: 5.0, Form: 5.0},
	}
	fixtures := []Fixture{
		{FixtureID: 1, Event: 1, HomeTeam: 1, AwayTeam: 2, HomeDifficulty: 2, AwayDifficulty: 2},
	}

	records := ProjectNextGameweek(players, fixtures, DefaultWeights())
	require.Len(t, records, 1)

	expected := 90 * ((0.7*5.0 + 0.3*5.0) / 75) * 1.0
	assert.InDelta(t, expected, records[0].ProjectedPoints, 1e-9)
}

func TestProjectNextGameweek_ElementTypeFallback(t *testing.T) {
	players := []PlayerForm{
		{ID: 1, ElementType: 1, Team: 1, Status: "a", PointsPerGame: 3.0, Form: 3.0},
	}

	records := ProjectNextGameweek(players, nil, DefaultWeights())
	require.Len(t, records, 1)

	// Numeric element type 1 resolves to goalkeeper for the 0.2 bias.
	expected := 90*((0.7*3.0+0.3*3.0)/75)*1.0 + 0.2
	assert.InDelta(t, expected, records[0].ProjectedPoints, 1e-9)
}
