package handler

import (
	"context"
	"math/rand"
	"time"

	"party-whatsapp/internal/models"
)

// dripStep is one delayed follow-up nudge. The message is only sent if
// its condition still holds when the delay elapses.
type dripStep struct {
	delay  time.Duration
	should func(g models.Guest, h *Handler) bool
	text   string
}

var defaultDripSteps = []dripStep{
	{
		delay: 40 * time.Minute,
		should: func(g models.Guest, h *Handler) bool {
			return !g.SantaJoined && h.storage.Santa().RegistrationOpen
		},
		text: "Psst 👀 Secret Santa registration is open and you're not in yet. Peek at *santa* 🎅",
	},
	{
		delay: 90 * time.Minute,
		should: func(g models.Guest, h *Handler) bool {
			return !g.HasPersona()
		},
		text: "Still no color on you 🎨 The good ones go fast — check *color*!",
	},
}

// startDrip launches the follow-up sequence after a guest completes their
// menu entry. Any later activity from the guest cancels it for real, via
// the stored cancel func, before the next send.
func (h *Handler) startDrip(guestID string) {
	ctx, cancel := context.WithCancel(context.Background())

	h.mu.Lock()
	if old, ok := h.drips[guestID]; ok {
		old()
	}
	h.drips[guestID] = cancel
	h.mu.Unlock()

	go h.runDrip(ctx, guestID)
}

func (h *Handler) cancelDrip(guestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.drips[guestID]; ok {
		cancel()
		delete(h.drips, guestID)
	}
}

func (h *Handler) runDrip(ctx context.Context, guestID string) {
	for _, step := range h.dripDelays {
		// Jitter so a batch of guests finishing together doesn't get
		// nudged in lockstep.
		delay := step.delay + time.Duration(rand.Int63n(int64(step.delay)/4+1))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		g := h.storage.GetOrCreate(guestID)
		if !step.should(g, h) {
			continue
		}
		h.send(guestID, step.text)
	}
}
