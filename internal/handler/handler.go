package handler

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"party-whatsapp/internal/bridge"
	"party-whatsapp/internal/models"
	"party-whatsapp/internal/storage"
)

// Config carries the handler's static settings.
type Config struct {
	AdminID       string
	PartyChatLink string
	ChannelID     string
	AnimationRef  string

	// Pre-seeded answers for the event wizard; the admin accepts one
	// by replying "-".
	DefaultEventName     string
	DefaultEventLocation string
	DefaultEventDate     string
}

// Handler routes inbound events: commands, menu keywords, bridge replies,
// field overrides, pending-action answers, and the generic fallback.
type Handler struct {
	gateway Gateway
	storage *storage.Storage
	bridges *bridge.Registry
	cfg     *Config
	log     zerolog.Logger

	// paces bulk fan-outs so broadcasts do not flood the transport
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]pendingAction
	drips   map[string]context.CancelFunc

	// overridable in tests
	dripDelays []dripStep
}

// NewHandler creates the party handler.
func NewHandler(gateway Gateway, store *storage.Storage, cfg *Config) *Handler {
	return &Handler{
		gateway:    gateway,
		storage:    store,
		bridges:    bridge.NewRegistry(),
		cfg:        cfg,
		log:        zerolog.New(os.Stdout).With().Str("component", "Handler").Logger(),
		limiter:    rate.NewLimiter(rate.Limit(4), 1),
		pending:    make(map[string]pendingAction),
		drips:      make(map[string]context.CancelFunc),
		dripDelays: defaultDripSteps,
	}
}

// fieldOverride matches the "field: value" shorthand that mutates a guest
// field directly, regardless of any pending token.
var fieldOverride = regexp.MustCompile(`(?i)^(dish|drink|dessert|wish):\s*(.+)$`)

// menuLabels maps guest-facing menu keywords to action codes.
var menuLabels = map[string]string{
	"🎨 my color": "persona:show", "my color": "persona:show", "color": "persona:show",
	"🧩 my tasks": "task:show", "my tasks": "task:show", "tasks": "task:show",
	"🍽 my menu": "menu:show", "my menu": "menu:show", "menu": "menu:show",
	"🎅 my santa": "santa:show", "my santa": "santa:show", "santa": "santa:show",
	"💬 party chat": "chat:link", "party chat": "chat:link", "chat": "chat:link",
	"📝 feedback": "feedback:start", "feedback": "feedback:start",
	"🙋 organizer": "contact:start", "organizer": "contact:start",
}

// actionHeads is the closed set of action-code prefixes a guest can type.
var actionHeads = map[string]bool{
	"party": true, "persona": true, "task": true, "menu": true,
	"santa": true, "gift": true, "chat": true, "feedback": true,
	"contact": true, "admin": true, "announce": true,
}

// HandleEvent processes one inbound event. A panicking flow is contained
// here: it is logged and reported to the triggering guest only.
func (h *Handler) HandleEvent(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("sender", ev.Sender).Msg("Handler panicked")
			h.send(ev.Sender, "Something went sideways on my end 🙈 Try that again.")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if ev.Chat == "" {
		ev.Chat = ev.Sender
	}

	g := h.storage.GetOrCreate(ev.Sender)
	h.refreshIdentity(&g, ev)

	// Any activity cancels the pending drip sequence.
	h.cancelDrip(ev.Sender)

	text := strings.TrimSpace(ev.Text)
	lower := strings.ToLower(text)

	// Commands first.
	switch lower {
	case "/start", "start":
		h.handleStart(g)
		return nil
	case "/admin":
		h.handleAdminMenu(g)
		return nil
	case "/cancel", "cancel":
		h.clearPending(g.ID)
		h.send(g.ID, "Okay, cancelled ✌️")
		h.sendMainMenu(g.ID)
		return nil
	}

	// A reply to a bridged message continues that thread.
	if ev.ReplyTo != nil {
		if e, ok := h.bridges.Lookup(ev.Chat, ev.ReplyTo.ID); ok {
			h.relay(ev, e.Peer, e.ForwardPrefix, e.BackPrefix)
			return nil
		}
	}

	// Menu keywords and typed action codes.
	if action, ok := menuLabels[lower]; ok {
		h.handleAction(g, action)
		return nil
	}
	if head, param, ok := splitAction(lower); ok && actionHeads[head] {
		h.handleAction(g, head+":"+param)
		return nil
	}

	// The field override works regardless of pending state and leaves
	// the pending token untouched.
	if m := fieldOverride.FindStringSubmatch(text); m != nil {
		h.applyOverride(g, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
		return nil
	}

	if a, ok := h.takePending(g.ID); ok {
		h.consumePending(g, a, ev, text)
		return nil
	}

	h.sendGeneric(g)
	return nil
}

func splitAction(s string) (head, param string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 || strings.ContainsAny(s, " \n") {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func (h *Handler) refreshIdentity(g *models.Guest, ev Event) {
	if (ev.Name == "" || ev.Name == g.Name) && (ev.Handle == "" || ev.Handle == g.Handle) {
		return
	}
	_ = h.storage.Update(g.ID, func(u *models.Guest) {
		if ev.Name != "" {
			u.Name = ev.Name
		}
		if ev.Handle != "" {
			u.Handle = ev.Handle
		}
	})
	if ev.Name != "" {
		g.Name = ev.Name
	}
	if ev.Handle != "" {
		g.Handle = ev.Handle
	}
}

// handleAction dispatches one action code (head:param).
func (h *Handler) handleAction(g models.Guest, action string) {
	head, param, _ := splitAction(action)
	if head == "admin" || head == "announce" {
		h.handleAdminAction(g, head, param)
		return
	}
	h.handleGuestAction(g, head, param)
}

// consumePending feeds the next message into whatever question was last
// asked. An unrecognized token fails open to the generic reply.
func (h *Handler) consumePending(g models.Guest, a pendingAction, ev Event, text string) {
	switch act := a.(type) {
	case enterCode:
		h.consumeCode(g, text)
	case setDish:
		h.consumeDish(g, text)
	case setDrink:
		h.consumeDrink(g, text)
	case setDessert:
		h.consumeDessert(g, text)
	case setWish:
		h.consumeWish(g, text)
	case msgRecipient:
		h.consumeSantaMessage(g, ev, g.RecipientID,
			"✉ A message from your Secret Santa:",
			"✉ A message from your giftee:")
	case msgBenefactor:
		h.consumeSantaMessage(g, ev, g.BenefactorID,
			"✉ A message from your giftee:",
			"✉ A message from your Secret Santa:")
	case contactOrganizer:
		h.consumeOrganizerMessage(g, ev)
	case collectFeedback:
		h.consumeFeedback(g, act, text)
	case adminBroadcast, adminSetBudget, adminSetDescription, adminFeedbackFrom,
		adminEventName, adminEventLocation, adminEventDate,
		adminAnnounce, adminAnnounceStaged:
		h.consumeAdminPending(g, a, text)
	default:
		h.sendGeneric(g)
	}
}

// relay forwards a message to peer under the given prefix, then anchors a
// fresh bridge on the delivered message with direction and prefixes
// swapped, so either side can keep replying indefinitely. The forwarded
// content never includes the counterpart's name or id.
func (h *Handler) relay(ev Event, peer, forwardPrefix, backPrefix string) {
	var sent MessageRef
	var err error

	if ev.HasMedia {
		if _, err = h.gateway.SendText(peer, forwardPrefix); err == nil {
			sent, err = h.gateway.CopyMessage(peer, MessageRef{Chat: ev.Chat, ID: ev.MessageID})
		}
	} else {
		sent, err = h.gateway.SendText(peer, forwardPrefix+"\n\n"+ev.Text)
	}
	if err != nil {
		h.log.Warn().Err(err).Str("peer", peer).Msg("Relay delivery failed")
		h.send(ev.Sender, "Couldn't deliver your message 😔")
		return
	}

	h.bridges.Register(sent.Chat, sent.ID, ev.Sender, backPrefix, forwardPrefix)
	h.send(ev.Sender, "Passed your message on anonymously ✉")
}

// send is a best-effort text send; delivery errors are logged only.
func (h *Handler) send(peer, text string) {
	if _, err := h.gateway.SendText(peer, text); err != nil {
		h.log.Warn().Err(err).Str("peer", peer).Msg("Send failed")
	}
}

func (h *Handler) sendGeneric(g models.Guest) {
	h.send(g.ID, "I hear you 👀 Use the menu below:")
	h.sendMainMenu(g.ID)
}

func (h *Handler) sendMainMenu(guestID string) {
	g := h.storage.GetOrCreate(guestID)
	santa := h.storage.Santa()

	lines := []string{
		"Your party menu 🎄",
		"• *color* — my color and role",
		"• *tasks* — my secret tasks",
		"• *menu* — what I'm bringing",
		"• *santa* — Secret Santa game",
		"• *chat* — the party group chat",
		"• *organizer* — message the organizer",
	}
	if santa.Started && g.SantaJoined {
		lines = append(lines, "• *gift:done* — mark my gift as ready")
	}
	if h.feedbackOpen() {
		lines = append(lines, "• *feedback* — tell us how it was")
	}
	lines = append(lines, "• *cancel* — stop whatever I started")
	h.send(guestID, strings.Join(lines, "\n"))
}

// passedGate reports whether the guest may use participant features:
// the event must be active and the guest's bound code must still match.
func (h *Handler) passedGate(g models.Guest) bool {
	ev := h.storage.Event()
	return ev.Active && ev.Code != "" && g.HasValidCode && strings.EqualFold(g.BoundCode, ev.Code)
}

func (h *Handler) isAdmin(g models.Guest) bool {
	return g.IsAdmin || (h.cfg.AdminID != "" && g.ID == h.cfg.AdminID)
}
