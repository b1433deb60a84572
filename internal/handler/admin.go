package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"party-whatsapp/internal/models"
	"party-whatsapp/internal/pairing"
	"party-whatsapp/internal/persona"
)

const notAdminReply = "You don't look like the organizer of this party 😏"

// handleAdminMenu answers the /admin command.
func (h *Handler) handleAdminMenu(g models.Guest) {
	if !h.isAdmin(g) {
		h.send(g.ID, notAdminReply)
		return
	}
	h.send(g.ID, strings.Join([]string{
		"Hey organizer 🎄 What are we doing?",
		"• *admin:guests* — guest list",
		"• *admin:personas* — colors and claims",
		"• *admin:santa* — Secret Santa settings",
		"• *admin:broadcast* — message all guests",
		"• *admin:event* — create/update the event",
		"• *admin:deactivate* — close the event",
		"• *admin:feedback* — set the feedback start date",
		"• *admin:announce* — publish a card to the channel",
	}, "\n"))
}

// handleAdminAction dispatches admin action codes. Non-admins get the
// polite refusal, never an error.
func (h *Handler) handleAdminAction(g models.Guest, head, param string) {
	if !h.isAdmin(g) {
		h.send(g.ID, notAdminReply)
		return
	}

	if head == "announce" {
		h.handleAnnounceDecision(g, param)
		return
	}

	switch param {
	case "guests":
		h.sendGuestList(g.ID)
	case "personas":
		h.sendClaimList(g.ID)
	case "santa":
		h.sendSantaAdminMenu(g.ID)
	case "santa_toggle":
		h.toggleSantaRegistration(g)
	case "budget":
		h.setPending(g.ID, adminSetBudget{})
		h.send(g.ID, "Send the budget text (e.g. «up to 500 UAH») 💸")
	case "description":
		h.setPending(g.ID, adminSetDescription{})
		h.send(g.ID, "Send the Secret Santa description text 📜")
	case "pairs":
		h.generatePairs(g)
	case "notify":
		h.notifyPairs(g)
	case "broadcast":
		h.setPending(g.ID, adminBroadcast{})
		h.send(g.ID, "Send the text I should broadcast to every participating guest 📣")
	case "event":
		h.setPending(g.ID, adminEventName{})
		h.send(g.ID, "Let's set up the event. What's its name? 🎉"+defaultHint(h.cfg.DefaultEventName))
	case "deactivate":
		h.storage.UpdateEvent(func(e *models.EventConfig) {
			e.Active = false
			e.Code = ""
		})
		h.send(g.ID, "Event closed 🔒 The join code is gone; nobody gets in until you create a new one.")
	case "feedback":
		h.setPending(g.ID, adminFeedbackFrom{})
		h.send(g.ID, "From what date should feedback open? Format: 2026-01-01 📅")
	case "announce":
		h.setPending(g.ID, adminAnnounce{})
		h.send(g.ID, "Send the announcement card text ✍️ You'll confirm before it goes out.")
	default:
		h.handleAdminMenu(g)
	}
}

// consumeAdminPending handles text answers to admin questions. The admin
// identity is re-checked: a stale token on a non-admin degrades to the
// polite refusal.
func (h *Handler) consumeAdminPending(g models.Guest, a pendingAction, text string) {
	if !h.isAdmin(g) {
		h.send(g.ID, notAdminReply)
		return
	}

	switch act := a.(type) {
	case adminSetBudget:
		h.storage.UpdateSanta(func(s *models.SantaConfig) { s.Budget = text })
		h.send(g.ID, "Budget saved 💸")
	case adminSetDescription:
		h.storage.UpdateSanta(func(s *models.SantaConfig) { s.Description = text })
		h.send(g.ID, "Description saved 📜")
	case adminBroadcast:
		h.broadcast(g, text)
	case adminFeedbackFrom:
		t, err := time.Parse("2006-01-02", strings.TrimSpace(text))
		if err != nil {
			h.setPending(g.ID, adminFeedbackFrom{})
			h.send(g.ID, "I couldn't read that date 🙈 Format: 2026-01-01")
			return
		}
		h.storage.UpdateEvent(func(e *models.EventConfig) { e.FeedbackFrom = &t })
		h.send(g.ID, fmt.Sprintf("Feedback opens on %s 📅", t.Format("2006-01-02")))
	case adminEventName:
		name := orDefault(text, h.cfg.DefaultEventName)
		h.setPending(g.ID, adminEventLocation{name: name})
		h.send(g.ID, "Where does it happen? 📍"+defaultHint(h.cfg.DefaultEventLocation))
	case adminEventLocation:
		location := orDefault(text, h.cfg.DefaultEventLocation)
		h.setPending(g.ID, adminEventDate{name: act.name, location: location})
		h.send(g.ID, "And when? Free text is fine 📅"+defaultHint(h.cfg.DefaultEventDate))
	case adminEventDate:
		text = orDefault(text, h.cfg.DefaultEventDate)
		code := newJoinCode()
		h.storage.UpdateEvent(func(e *models.EventConfig) {
			e.Active = true
			e.Name = act.name
			e.Location = act.location
			e.DateText = text
			e.Code = code
		})
		h.send(g.ID, fmt.Sprintf(
			"Event is live 🎉\n*%s*\n📍 %s\n📅 %s\n\nJoin code: *%s*\nShare it with the guests!",
			act.name, act.location, text, code))
	case adminAnnounce:
		h.setPending(g.ID, adminAnnounceStaged{draft: text})
		h.send(g.ID,
			"Here's the card:\n\n"+text+
				"\n\n• *announce:publish* — post it to the channel\n• *announce:cancel* — scrap it")
	case adminAnnounceStaged:
		// Still waiting for a publish/cancel decision; keep the draft.
		h.setPending(g.ID, act)
		h.send(g.ID, "Decide on the card first: *announce:publish* or *announce:cancel* 😉")
	default:
		h.sendGeneric(g)
	}
}

func (h *Handler) handleAnnounceDecision(g models.Guest, param string) {
	a, ok := h.takePending(g.ID)
	staged, isStaged := a.(adminAnnounceStaged)
	if !ok || !isStaged {
		h.send(g.ID, "There's no staged card — start with *admin:announce* 😉")
		return
	}

	switch param {
	case "publish":
		if h.cfg.ChannelID == "" {
			h.send(g.ID, "No channel is configured 🤔")
			return
		}
		if _, err := h.gateway.SendText(h.cfg.ChannelID, staged.draft); err != nil {
			h.log.Warn().Err(err).Msg("Channel publish failed")
			h.send(g.ID, "Couldn't post to the channel 😔")
			return
		}
		h.send(g.ID, "Published to the channel 📣")
	case "cancel":
		h.send(g.ID, "Scrapped the card 🗑")
	default:
		h.setPending(g.ID, staged)
		h.send(g.ID, "That's *announce:publish* or *announce:cancel* 😉")
	}
}

// defaultHint tells the admin a pre-seeded answer is available.
func defaultHint(value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("\nSend *-* to use «%s».", value)
}

// orDefault substitutes the pre-seeded answer when the admin replies "-".
func orDefault(text, fallback string) string {
	if text == "-" && fallback != "" {
		return fallback
	}
	return text
}

// newJoinCode derives a short shareable code; uuids give us enough
// randomness and a friendly hex alphabet.
func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func (h *Handler) sendGuestList(adminID string) {
	guests := h.storage.Participants()
	if len(guests) == 0 {
		lines := []string{"👥 *Guests:*", "Nobody yet."}
		h.send(adminID, strings.Join(lines, "\n"))
		return
	}

	lines := []string{"👥 *Guests:*"}
	for _, g := range guests {
		colorTxt := "—"
		if p := persona.ByID(g.PersonaID); p != nil {
			colorTxt = fmt.Sprintf("%s %s", p.Emoji, p.Color)
		}
		santaTxt := "no"
		if g.SantaJoined {
			santaTxt = "yes"
			if g.GiftPrepared {
				santaTxt = "yes, gift ready 🎁"
			}
		}
		lines = append(lines, fmt.Sprintf(
			"• %s | Color: %s | Dish: %s | Drink: %s | Dessert: %s | Santa: %s",
			displayName(g), colorTxt, orDash(g.Dish), orDash(g.Drink), orDash(g.Dessert), santaTxt))
	}
	h.send(adminID, strings.Join(lines, "\n"))
}

func (h *Handler) sendClaimList(adminID string) {
	claims := h.storage.Claims()
	lines := []string{"🎨 *Colors:*"}
	for _, p := range persona.Catalog {
		holder := "free"
		if gid, ok := claims[p.ID]; ok {
			holder = displayName(h.storage.GetOrCreate(gid))
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s) — %s", p.Emoji, p.Color, p.Role, holder))
	}
	h.send(adminID, strings.Join(lines, "\n"))
}

func (h *Handler) sendSantaAdminMenu(adminID string) {
	s := h.storage.Santa()
	status := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	h.send(adminID, strings.Join([]string{
		"🎅 *Secret Santa settings*",
		fmt.Sprintf("Registration: %s | Started: %s", status(s.RegistrationOpen), status(s.Started)),
		fmt.Sprintf("Budget: %s", orDash(s.Budget)),
		fmt.Sprintf("Description: %s", orDash(s.Description)),
		"",
		"• *admin:santa_toggle* — open/close registration",
		"• *admin:budget* — set the budget text",
		"• *admin:description* — set the description",
		"• *admin:pairs* — draw the gift pairs",
		"• *admin:notify* — tell everyone who they gift",
	}, "\n"))
}

func (h *Handler) toggleSantaRegistration(g models.Guest) {
	s := h.storage.Santa()
	if !s.RegistrationOpen && s.Budget == "" {
		h.send(g.ID, "Set a budget first — guests will ask anyway 💸 (*admin:budget*)")
		return
	}
	open := !s.RegistrationOpen
	h.storage.UpdateSanta(func(c *models.SantaConfig) { c.RegistrationOpen = open })
	if open {
		h.send(g.ID, "Secret Santa registration is open 🎅")
	} else {
		h.send(g.ID, "Secret Santa registration is closed 🔒")
	}
}

// generatePairs draws a fresh gift cycle over the opted-in guests.
// Re-running reshuffles on purpose.
func (h *Handler) generatePairs(g models.Guest) {
	players := h.storage.SantaPlayers()
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}

	order, err := pairing.Cycle(ids)
	if errors.Is(err, pairing.ErrInsufficientParticipants) {
		h.send(g.ID, "Not enough players for pairs yet 😅")
		return
	}

	h.storage.ApplyPairing(order)
	h.storage.UpdateSanta(func(s *models.SantaConfig) { s.Started = true })
	h.send(g.ID, fmt.Sprintf("Secret Santa pairs are drawn 🎅\nPlayers in the game: %d", len(order)))
}

// notifyPairs tells every player who they gift. Best effort: one
// unreachable guest never aborts the rest.
func (h *Handler) notifyPairs(g models.Guest) {
	count := 0
	for _, player := range h.storage.SantaPlayers() {
		if player.RecipientID == "" {
			continue
		}
		r := h.storage.GetOrCreate(player.RecipientID)

		parts := []string{
			"🎅 *Your giftee in Secret Santa*",
			fmt.Sprintf("Name: *%s*", displayName(r)),
		}
		if r.Wish != "" {
			parts = append(parts, fmt.Sprintf("Wish / anti-wish:\n_%s_", r.Wish))
		} else {
			parts = append(parts, "They went for «Surprise me» 🎁")
		}
		parts = append(parts, "\nDon't blow your cover early 😉\nYou can write to them via *santa*.")

		if err := h.limiter.Wait(context.Background()); err != nil {
			break
		}
		if _, err := h.gateway.SendText(player.ID, strings.Join(parts, "\n")); err != nil {
			h.log.Warn().Err(err).Str("peer", player.ID).Msg("Pair notification failed")
			continue
		}
		count++
	}
	h.send(g.ID, fmt.Sprintf("Sent giftee info to %d players 🎄", count))
}

// broadcast fans the text out to all participating guests, best effort.
func (h *Handler) broadcast(g models.Guest, text string) {
	count := 0
	for _, guest := range h.storage.Participants() {
		if guest.ID == g.ID {
			continue
		}
		if err := h.limiter.Wait(context.Background()); err != nil {
			break
		}
		if _, err := h.gateway.SendText(guest.ID, text); err != nil {
			h.log.Warn().Err(err).Str("peer", guest.ID).Msg("Broadcast send failed")
			continue
		}
		count++
	}
	h.send(g.ID, fmt.Sprintf("Broadcast delivered to %d guests 📣", count))
}
