package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"party-whatsapp/internal/models"
	"party-whatsapp/internal/persona"
	"party-whatsapp/internal/storage"
)

// handleStart runs the onboarding flow behind the join gate.
func (h *Handler) handleStart(g models.Guest) {
	ev := h.storage.Event()
	if !ev.Active || ev.Code == "" {
		h.send(g.ID, "There's no active party right now 🤔 Come back once the organizer sets one up!")
		return
	}

	if !h.passedGate(g) {
		h.setPending(g.ID, enterCode{})
		h.send(g.ID,
			"🎄 Hey, I'm your party buddy bot!\n\n"+
				"I'll help you:\n"+
				"• register for the party,\n"+
				"• pick your 🎨 color persona,\n"+
				"• get a secret role and tasks,\n"+
				"• jump into 🎅 Secret Santa.\n\n"+
				"First things first — what's the join code from your invite?")
		return
	}

	if !g.Participating {
		h.sendParticipationPrompt(g.ID)
		return
	}
	h.sendMainMenu(g.ID)
}

func (h *Handler) sendParticipationPrompt(guestID string) {
	h.send(guestID,
		"So, are you actually coming? 🎉\n\n"+
			"• *party:yes* — yes, I'll be there!\n"+
			"• *party:no* — just watching for now")
}

// consumeCode checks a join-code attempt. A wrong code re-arms the same
// token; a correct one binds the guest and moves on to the participation
// prompt. Matching is case-insensitive.
func (h *Handler) consumeCode(g models.Guest, text string) {
	ev := h.storage.Event()
	code := strings.TrimSpace(text)
	if !ev.Active || ev.Code == "" || !strings.EqualFold(code, ev.Code) {
		h.setPending(g.ID, enterCode{})
		h.send(g.ID, "That's not the code I have 🙈 Check your invite and try again.")
		return
	}

	if err := h.storage.Update(g.ID, func(u *models.Guest) {
		u.BoundCode = ev.Code
		u.HasValidCode = true
	}); err != nil {
		h.log.Error().Err(err).Str("guest", g.ID).Msg("Failed to bind code")
		return
	}
	h.send(g.ID, "Code accepted ✅")
	h.sendParticipationPrompt(g.ID)
}

// handleGuestAction dispatches guest-facing action codes.
func (h *Handler) handleGuestAction(g models.Guest, head, param string) {
	// Everything past this point needs the gate.
	if !h.passedGate(g) {
		h.handleStart(g)
		return
	}

	switch head + ":" + param {
	case "party:yes":
		h.confirmParticipation(g)
		return
	case "party:no":
		h.declineParticipation(g)
		return
	}

	if !g.Participating {
		h.sendParticipationPrompt(g.ID)
		return
	}

	switch head {
	case "persona":
		h.handlePersonaAction(g, param)
	case "task":
		h.handleTaskAction(g, param)
	case "menu":
		h.startMenuFlow(g)
	case "santa":
		h.handleSantaAction(g, param)
	case "gift":
		h.toggleGiftPrepared(g)
	case "chat":
		h.sendChatLink(g.ID)
	case "feedback":
		h.handleFeedbackAction(g, param)
	case "contact":
		h.setPending(g.ID, contactOrganizer{})
		h.send(g.ID, "Write your message and I'll pass it to the organizer without your name 👇")
	default:
		h.sendGeneric(g)
	}
}

func (h *Handler) confirmParticipation(g models.Guest) {
	_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Participating = true })
	h.send(g.ID,
		"Awesome, you're on the guest list 🎄\n\n"+
			"Now let's pick your 🎨 *personal color*.\n"+
			"Each color can be taken only once!")
	h.sendPersonaList(g.ID)
}

func (h *Handler) declineParticipation(g models.Guest) {
	if err := h.storage.ResetToDefault(g.ID); err != nil {
		h.log.Error().Err(err).Str("guest", g.ID).Msg("Failed to reset guest")
	}
	h.clearPending(g.ID)
	h.send(g.ID, "Okay, you can just lurk for now 😉 If you change your mind — send *start* again.")
}

func (h *Handler) sendPersonaList(guestID string) {
	free := persona.Available(h.storage.Claims())
	if len(free) == 0 {
		h.send(guestID, "All colors are taken already 😅")
		return
	}
	lines := []string{"Pick your color — reply with its code:"}
	for _, p := range free {
		lines = append(lines, fmt.Sprintf("%s *%s* — persona:%d", p.Emoji, p.Color, p.ID))
	}
	h.send(guestID, strings.Join(lines, "\n"))
}

func (h *Handler) handlePersonaAction(g models.Guest, param string) {
	if param == "show" {
		h.showPersona(g)
		return
	}
	id, err := strconv.Atoi(param)
	if err != nil {
		h.send(g.ID, "Something's off with that color 🤔")
		return
	}
	h.claimPersona(g, id)
}

func (h *Handler) claimPersona(g models.Guest, personaID int) {
	taskIndex, err := h.storage.ClaimPersona(personaID, g.ID)
	switch {
	case errors.Is(err, storage.ErrAlreadyTaken):
		h.send(g.ID, "That color's already gone, grab another one 🙈")
		h.sendPersonaList(g.ID)
		return
	case errors.Is(err, storage.ErrUnknownPersona):
		h.send(g.ID, "Something's off with that color 🤔")
		return
	case err != nil:
		h.log.Error().Err(err).Str("guest", g.ID).Msg("Claim failed")
		h.send(g.ID, "Couldn't save that, try again 🙏")
		return
	}

	p := persona.ByID(personaID)
	h.send(g.ID, fmt.Sprintf(
		"%s Your party color: *%s*.\n\n"+
			"Your role: *%s*\n\n"+
			"Your secret task (nobody else should know 👀):\n%s\n\n"+
			"You can always come back to it via *color* and *tasks*.\n"+
			"Next up: join 🎅 Secret Santa or add your 🍽 menu contribution.",
		p.Emoji, p.Color, p.Role, p.Tasks[taskIndex]))
	if h.cfg.AnimationRef != "" {
		if err := h.gateway.SendAnimation(g.ID, h.cfg.AnimationRef); err != nil {
			h.log.Warn().Err(err).Msg("Animation send failed")
		}
	}
	h.sendMainMenu(g.ID)
}

func (h *Handler) showPersona(g models.Guest) {
	if !g.HasPersona() {
		h.send(g.ID, "You haven't picked your color yet 🎨")
		h.sendPersonaList(g.ID)
		return
	}
	p := persona.ByID(g.PersonaID)
	h.send(g.ID, fmt.Sprintf("Your color: %s *%s*\nYour role: *%s*", p.Emoji, p.Color, p.Role))
}

func taskIcon(s models.TaskState) string {
	switch s {
	case models.TaskDone:
		return "✅"
	case models.TaskFailed:
		return "❌"
	default:
		return "⬜"
	}
}

func (h *Handler) handleTaskAction(g models.Guest, param string) {
	if !g.HasPersona() {
		h.send(g.ID, "Pick your color first, then you'll get tasks 😉")
		return
	}
	p := persona.ByID(g.PersonaID)

	if param != "show" {
		n, err := strconv.Atoi(param)
		if err != nil || n < 1 || n > len(p.Tasks) {
			h.send(g.ID, "I don't know that task 🤔")
			return
		}
		_ = h.storage.Update(g.ID, func(u *models.Guest) {
			for len(u.TaskStates) < len(p.Tasks) {
				u.TaskStates = append(u.TaskStates, models.TaskUndone)
			}
			u.TaskStates[n-1] = u.TaskStates[n-1].Next()
		})
		g = h.storage.GetOrCreate(g.ID)
	}

	lines := []string{fmt.Sprintf("Your role: *%s*\nYour tasks (reply *task:<n>* to flip one):", p.Role)}
	for i, t := range p.Tasks {
		state := models.TaskUndone
		if i < len(g.TaskStates) {
			state = g.TaskStates[i]
		}
		marker := ""
		if i == g.TaskIndex {
			marker = " ⭐"
		}
		lines = append(lines, fmt.Sprintf("%d. %s %s%s", i+1, taskIcon(state), t, marker))
	}
	h.send(g.ID, strings.Join(lines, "\n"))
}

// startMenuFlow shows the current contribution and walks the guest
// through dish, drink and dessert.
func (h *Handler) startMenuFlow(g models.Guest) {
	if g.Dish != "" || g.Drink != "" || g.Dessert != "" {
		h.send(g.ID, fmt.Sprintf(
			"You're bringing:\n🍲 dish: %s\n🥤 drink: %s\n🍰 dessert: %s\n\nLet's update it — or send *cancel* to keep it.",
			orDash(g.Dish), orDash(g.Drink), orDash(g.Dessert)))
	}
	h.setPending(g.ID, setDish{})
	h.send(g.ID, "What dish are you bringing? 🍲")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func (h *Handler) consumeDish(g models.Guest, text string) {
	_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Dish = text })
	h.setPending(g.ID, setDrink{})
	h.send(g.ID, "Noted 🍲 And what drink? 🥤")
}

func (h *Handler) consumeDrink(g models.Guest, text string) {
	_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Drink = text })
	h.setPending(g.ID, setDessert{})
	h.send(g.ID, "Got it 🥤 Any dessert? 🍰")
}

func (h *Handler) consumeDessert(g models.Guest, text string) {
	_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Dessert = text })
	h.send(g.ID, "Perfect, your menu contribution is all set 🍽")
	h.sendMainMenu(g.ID)
	h.startDrip(g.ID)
}

// applyOverride handles the "field: value" shorthand. It bypasses the
// token state entirely.
func (h *Handler) applyOverride(g models.Guest, field, value string) {
	if !h.passedGate(g) {
		h.handleStart(g)
		return
	}
	switch field {
	case "dish":
		_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Dish = value })
	case "drink":
		_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Drink = value })
	case "dessert":
		_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Dessert = value })
	case "wish":
		if isSurprise(value) {
			value = ""
		}
		_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Wish = value })
	}
	h.send(g.ID, fmt.Sprintf("Updated your %s ✍️", field))
}

// ---- Secret Santa ----

func (h *Handler) handleSantaAction(g models.Guest, param string) {
	switch param {
	case "show":
		h.showSanta(g)
	case "join":
		h.santaJoin(g)
	case "leave":
		h.santaLeave(g)
	case "msg_recipient":
		if g.RecipientID == "" {
			h.send(g.ID, "You don't have a giftee yet 🤔")
			return
		}
		h.setPending(g.ID, msgRecipient{})
		h.send(g.ID, "Write the message for your giftee — I'll forward it anonymously 👇")
	case "msg_benefactor":
		if g.BenefactorID == "" {
			h.send(g.ID, "You don't have a Secret Santa yet 🤔")
			return
		}
		h.setPending(g.ID, msgBenefactor{})
		h.send(g.ID, "Write the message for your Secret Santa — I'll forward it anonymously 👇")
	default:
		h.sendGeneric(g)
	}
}

func (h *Handler) showSanta(g models.Guest) {
	santa := h.storage.Santa()

	if !g.SantaJoined {
		text := "🎅 *Secret Santa*\n\nEveryone secretly gifts someone something nice."
		if santa.Description != "" {
			text = "🎅 *Secret Santa*\n\n" + santa.Description
		}
		if santa.Budget != "" {
			text += fmt.Sprintf("\nBudget: %s", santa.Budget)
		}
		if santa.RegistrationOpen {
			text += "\n\nWant in?\n• *santa:join* — count me in!\n• *santa:leave* — pass"
		} else {
			text += "\n\nRegistration isn't open yet — I'll be waiting 🎁"
		}
		h.send(g.ID, text)
		return
	}

	if !santa.Started {
		h.send(g.ID, "You're in the game, but pairs aren't drawn yet. Waiting on the organizer 🎅")
		return
	}

	parts := []string{"🎅 *Your Secret Santa corner*"}
	if g.RecipientID != "" {
		r := h.storage.GetOrCreate(g.RecipientID)
		parts = append(parts, fmt.Sprintf("\nYour giftee:\n*%s*", displayName(r)))
		if r.Wish != "" {
			parts = append(parts, fmt.Sprintf("Their wish:\n_%s_", r.Wish))
		} else {
			parts = append(parts, "They went for: «Surprise me» 🎁")
		}
	}
	if g.BenefactorID != "" {
		parts = append(parts, "\nYou have a Secret Santa of your own — no, I won't tell you who 😏")
	}
	parts = append(parts,
		"\nYou can write anonymously:\n• *santa:msg_recipient* — to your giftee\n• *santa:msg_benefactor* — to your Santa")
	h.send(g.ID, strings.Join(parts, "\n"))
}

func displayName(g models.Guest) string {
	if g.Name != "" {
		return g.Name
	}
	if g.Handle != "" {
		return "@" + g.Handle
	}
	return "Guest"
}

func (h *Handler) santaJoin(g models.Guest) {
	santa := h.storage.Santa()
	if !santa.RegistrationOpen {
		h.send(g.ID, "Registration for Secret Santa isn't open yet 🙈")
		return
	}
	_ = h.storage.Update(g.ID, func(u *models.Guest) { u.SantaJoined = true })
	h.setPending(g.ID, setWish{})
	h.send(g.ID,
		"You're in the game 🎅\n\n"+
			"Tell me what you'd love to get — or what definitely NOT to gift you.\n"+
			"Want a full surprise? Just write «Surprise».")
}

// santaLeave drops the guest out of the game and resets their record to
// the default template: persona released, menu and Santa fields cleared,
// no stale pairing link left pointing at them.
func (h *Handler) santaLeave(g models.Guest) {
	if err := h.storage.ResetToDefault(g.ID); err != nil {
		h.log.Error().Err(err).Str("guest", g.ID).Msg("Failed to reset guest")
	}
	h.clearPending(g.ID)
	h.send(g.ID, "Alright, I took you out of the Secret Santa game 🎅")
}

// isSurprise recognizes the no-preference sentinel, case-insensitive.
func isSurprise(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == "surprise" || lower == "сюрприз"
}

func (h *Handler) consumeWish(g models.Guest, text string) {
	if isSurprise(text) {
		_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Wish = "" })
		h.send(g.ID, "Okay, noted: you're team surprise 🎁\nPairs come a bit later, hang tight 😉")
	} else {
		_ = h.storage.Update(g.ID, func(u *models.Guest) { u.Wish = text })
		h.send(g.ID, "Saved your wish for Secret Santa 🎅\nPairs come a bit later, hang tight 😉")
	}
	h.sendMainMenu(g.ID)
}

func (h *Handler) consumeSantaMessage(g models.Guest, ev Event, target, forwardPrefix, backPrefix string) {
	if target == "" {
		h.send(g.ID, "Can't deliver that right now 🤔")
		return
	}
	h.relay(ev, target, forwardPrefix, backPrefix)
}

func (h *Handler) toggleGiftPrepared(g models.Guest) {
	if !g.SantaJoined {
		h.send(g.ID, "You're not in the Secret Santa game 🤔")
		return
	}
	prepared := !g.GiftPrepared
	_ = h.storage.Update(g.ID, func(u *models.Guest) { u.GiftPrepared = prepared })
	if prepared {
		h.send(g.ID, "Marked your gift as ready 🎁")
	} else {
		h.send(g.ID, "Okay, gift's back in progress 🔧")
	}
}

// ---- organizer contact and feedback ----

func (h *Handler) consumeOrganizerMessage(g models.Guest, ev Event) {
	if h.cfg.AdminID == "" {
		h.send(g.ID, "The organizer isn't reachable right now 🤔")
		return
	}
	h.relay(ev, h.cfg.AdminID, "🙋 A guest writes:", "💌 The organizer replies:")
}

func (h *Handler) feedbackOpen() bool {
	ev := h.storage.Event()
	return ev.FeedbackFrom != nil && !time.Now().Before(*ev.FeedbackFrom)
}

func (h *Handler) handleFeedbackAction(g models.Guest, param string) {
	switch param {
	case "start":
		if !h.feedbackOpen() {
			h.send(g.ID, "Feedback opens after the party 😉")
			return
		}
		h.setPending(g.ID, collectFeedback{})
		h.send(g.ID, "Tell me everything — send as many messages as you like, then *feedback:submit* 📝")
	case "submit":
		a, ok := h.takePending(g.ID)
		fb, isFb := a.(collectFeedback)
		if !ok || !isFb {
			h.send(g.ID, "There's nothing to submit yet — start with *feedback* 😉")
			return
		}
		if len(fb.messages) == 0 {
			h.send(g.ID, "You haven't written anything yet 🙈")
			h.setPending(g.ID, fb)
			return
		}
		if h.cfg.AdminID != "" {
			h.send(h.cfg.AdminID, "📝 Feedback from a guest:\n\n"+strings.Join(fb.messages, "\n"))
		}
		h.send(g.ID, "Thank you! Passed it on 💛")
	default:
		h.sendGeneric(g)
	}
}

func (h *Handler) consumeFeedback(g models.Guest, fb collectFeedback, text string) {
	fb.messages = append(fb.messages, text)
	h.setPending(g.ID, fb)
	h.send(g.ID, "Added 📝 Keep going, or send *feedback:submit* when you're done.")
}

func (h *Handler) sendChatLink(guestID string) {
	if h.cfg.PartyChatLink != "" {
		h.send(guestID, "Here's our party group chat 💬\n"+h.cfg.PartyChatLink)
	} else {
		h.send(guestID, "The organizer hasn't added a chat link yet 🤔")
	}
}
