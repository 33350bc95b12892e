package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NormalizesAndSorts(t *testing.T) {
	records := []RawRecord{
		{ID: 30, Name: "Haaland", ElementType: 4, Team: 11, PriceTenths: 151, ProjectedPoints: 8.2, Status: "a"},
		{ID: 10, Name: "Raya", Position: "GK", Team: 1, PriceTenths: 55, ProjectedPoints: 3.9, Status: "a"},
		{ID: 20, Name: "Saka", ElementType: 3, Team: 1, PriceTenths: 102, ProjectedPoints: 6.1, Status: "a"},
	}

	players, err := Load(records, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, players, 3)

	// Canonical ID order regardless of input order.
	assert.Equal(t, []int{10, 20, 30}, []int{players[0].ID, players[1].ID, players[2].ID})
	assert.Equal(t, Goalkeeper, players[0].Position)
	assert.Equal(t, Midfielder, players[1].Position)
	assert.Equal(t, Forward, players[2].Position)
	assert.True(t, players[2].Available)
}

func TestLoad_OrderIndependent(t *testing.T) {
	records := []RawRecord{
		{ID: 1, Position: "GK", Team: 1, PriceTenths: 40, Status: "a"},
		{ID: 2, Position: "DEF", Team: 2, PriceTenths: 45, Status: "a"},
		{ID: 3, Position: "MID", Team: 3, PriceTenths: 70, Status: "a"},
	}
	reversed := []RawRecord{records[2], records[1], records[0]}

	a, err := Load(records, LoadOptions{})
	require.NoError(t, err)
	b, err := Load(reversed, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []RawRecord
		wantID  int
	}{
		{
			name: "duplicate id",
			records: []RawRecord{
				{ID: 7, Position: "GK", PriceTenths: 40, Status: "a"},
				{ID: 7, Position: "DEF", PriceTenths: 45, Status: "a"},
			},
			wantID: 7,
		},
		{
			name: "negative price",
			records: []RawRecord{
				{ID: 8, Position: "MID", PriceTenths: -10, Status: "a"},
			},
			wantID: 8,
		},
		{
			name: "unknown position",
			records: []RawRecord{
				{ID: 9, Position: "STRIKER", PriceTenths: 60, Status: "a"},
			},
			wantID: 9,
		},
		{
			name: "unknown element type",
			records: []RawRecord{
				{ID: 10, ElementType: 5, PriceTenths: 60, Status: "a"},
			},
			wantID: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.records, LoadOptions{})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantID, verr.RecordID)
		})
	}
}

func TestLoad_FiltersUnavailable(t *testing.T) {
	records := []RawRecord{
		{ID: 1, Position: "GK", PriceTenths: 40, Status: "a"},
		{ID: 2, Position: "DEF", PriceTenths: 45, Status: "i"}, // injured
		{ID: 3, Position: "MID", PriceTenths: 70, Status: "s"}, // suspended
		{ID: 4, Position: "FWD", PriceTenths: 80, Status: "d"}, // doubtful stays
	}

	players, err := Load(records, LoadOptions{})
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, 1, players[0].ID)
	assert.Equal(t, 4, players[1].ID)

	// What-if override keeps everyone, flagged.
	all, err := Load(records, LoadOptions{IncludeUnavailable: true})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.False(t, all[1].Available)
	assert.False(t, all[2].Available)
}
