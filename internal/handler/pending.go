package handler

// pendingAction records what question a guest is expected to answer with
// their next message. The set is closed: every variant is consumed in one
// place by a type switch, and anything unrecognized falls open to the
// generic reply.
type pendingAction interface{ isPending() }

type (
	// join gate
	enterCode struct{}

	// menu contribution chain
	setDish    struct{}
	setDrink   struct{}
	setDessert struct{}

	// Secret Santa
	setWish       struct{}
	msgRecipient  struct{}
	msgBenefactor struct{}

	// organizer contact and feedback collection
	contactOrganizer struct{}
	collectFeedback  struct{ messages []string }

	// admin flows; the admin id is re-checked at consumption time
	adminBroadcast      struct{}
	adminSetBudget      struct{}
	adminSetDescription struct{}
	adminFeedbackFrom   struct{}
	adminEventName      struct{}
	adminEventLocation  struct{ name string }
	adminEventDate      struct{ name, location string }
	adminAnnounce       struct{}
	adminAnnounceStaged struct{ draft string }
)

func (enterCode) isPending()           {}
func (setDish) isPending()             {}
func (setDrink) isPending()            {}
func (setDessert) isPending()          {}
func (setWish) isPending()             {}
func (msgRecipient) isPending()        {}
func (msgBenefactor) isPending()       {}
func (contactOrganizer) isPending()    {}
func (collectFeedback) isPending()     {}
func (adminBroadcast) isPending()      {}
func (adminSetBudget) isPending()      {}
func (adminSetDescription) isPending() {}
func (adminFeedbackFrom) isPending()   {}
func (adminEventName) isPending()      {}
func (adminEventLocation) isPending()  {}
func (adminEventDate) isPending()      {}
func (adminAnnounce) isPending()       {}
func (adminAnnounceStaged) isPending() {}

// setPending arms a token for the guest, overwriting any previous one.
func (h *Handler) setPending(guestID string, a pendingAction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[guestID] = a
}

// takePending removes and returns the guest's pending token.
func (h *Handler) takePending(guestID string) (pendingAction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.pending[guestID]
	if ok {
		delete(h.pending, guestID)
	}
	return a, ok
}

func (h *Handler) clearPending(guestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, guestID)
}
