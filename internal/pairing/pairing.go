// Package pairing generates the Secret Santa gift cycle.
package pairing

import (
	"errors"
	"math/rand"
)

// ErrInsufficientParticipants is returned when fewer than two guests
// have opted into the game.
var ErrInsufficientParticipants = errors.New("not enough participants for pairing")

// Cycle returns the participant ids in a random order forming a single
// gift cycle: each id gives to the next, the last to the first. Every
// participant ends up with exactly one distinct recipient and one
// distinct benefactor; for n >= 3 nobody is paired with themselves, for
// n = 2 the two are mutually paired. Re-running reshuffles on purpose.
func Cycle(ids []string) ([]string, error) {
	if len(ids) < 2 {
		return nil, ErrInsufficientParticipants
	}
	order := make([]string, len(ids))
	copy(order, ids)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order, nil
}
