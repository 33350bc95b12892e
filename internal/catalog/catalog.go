package catalog

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"fpl-optimizer/pkg/logger"
)

// Position is one of the four FPL roster positions.
type Position string

const (
	Goalkeeper Position = "GK"
	Defender   Position = "DEF"
	Midfielder Position = "MID"
	Forward    Position = "FWD"
)

// Positions lists all roster positions in squad order.
var Positions = []Position{Goalkeeper, Defender, Midfielder, Forward}

// elementTypes maps the FPL numeric element_type codes to positions.
var elementTypes = map[int]Position{
	1: Goalkeeper,
	2: Defender,
	3: Midfielder,
	4: Forward,
}

// ParsePosition resolves either a position string ("GK", "DEF", ...) or an
// FPL element_type code into a Position.
func ParsePosition(code string, elementType int) (Position, bool) {
	switch Position(code) {
	case Goalkeeper, Defender, Midfielder, Forward:
		return Position(code), true
	}
	if p, ok := elementTypes[elementType]; ok && code == "" {
		return p, true
	}
	return "", false
}

// RawRecord is an already-deserialized player record as supplied by an
// external data collaborator. Either Position or ElementType identifies the
// roster position; prices are in tenths of a million to avoid float drift.
type RawRecord struct {
	ID              int     `json:"element_id"`
	Name            string  `json:"name"`
	Position        string  `json:"position,omitempty"`
	ElementType     int     `json:"element_type,omitempty"`
	Team            int     `json:"team"`
	PriceTenths     int     `json:"price_tenths"`
	ProjectedPoints float64 `json:"projected_points"`
	Status          string  `json:"status"` // FPL availability flag: a/d/i/s/u/n
}

// Player is the engine's immutable representation of a selectable player.
type Player struct {
	ID              int      `json:"element_id"`
	Name            string   `json:"name"`
	Position        Position `json:"position"`
	Team            int      `json:"team"`
	PriceTenths     int      `json:"price_tenths"`
	ProjectedPoints float64  `json:"projected_points"`
	Available       bool     `json:"available"`
}

// LoadOptions controls catalog filtering.
type LoadOptions struct {
	// IncludeUnavailable keeps injured/suspended players in the pool for
	// what-if solves instead of dropping them.
	IncludeUnavailable bool
}

// Available reports whether an FPL status flag marks the player selectable.
// "a" is available and "d" is doubtful; everything else (injured, suspended,
// unavailable, not in squad) is out. An empty status means availability was
// not tracked upstream and the player is treated as available.
func Available(status string) bool {
	switch status {
	case "", "a", "d":
		return true
	}
	return false
}

// Load validates and normalizes raw records into the engine's player set.
// The result is canonically ordered by element ID so solver behavior never
// depends on input order. Unavailable players are filtered unless
// opts.IncludeUnavailable is set.
func Load(records []RawRecord, opts LoadOptions) ([]Player, error) {
	log := logger.WithService("catalog")

	seen := make(map[int]bool, len(records))
	players := make([]Player, 0, len(records))
	filtered := 0

	for _, rec := range records {
		if seen[rec.ID] {
			return nil, &ValidationError{RecordID: rec.ID, Reason: "duplicate element_id"}
		}
		seen[rec.ID] = true

		if rec.PriceTenths < 0 {
			return nil, &ValidationError{
				RecordID: rec.ID,
				Reason:   fmt.Sprintf("negative price %d", rec.PriceTenths),
			}
		}

		pos, ok := ParsePosition(rec.Position, rec.ElementType)
		if !ok {
			return nil, &ValidationError{
				RecordID: rec.ID,
				Reason:   fmt.Sprintf("unrecognized position %q (element_type %d)", rec.Position, rec.ElementType),
			}
		}

		available := Available(rec.Status)
		if !available && !opts.IncludeUnavailable {
			filtered++
			continue
		}

		players = append(players, Player{
			ID:              rec.ID,
			Name:            rec.Name,
			Position:        pos,
			Team:            rec.Team,
			PriceTenths:     rec.PriceTenths,
			ProjectedPoints: rec.ProjectedPoints,
			Available:       available,
		})
	}

	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	log.WithFields(logrus.Fields{
		"total_records":  len(records),
		"filtered_count": filtered,
		"pool_size":      len(players),
	}).Debug("Player catalog loaded")

	return players, nil
}

// ValidationError reports a malformed raw record, identifying the offender.
type ValidationError struct {
	RecordID int
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid player record %d: %s", e.RecordID, e.Reason)
}
