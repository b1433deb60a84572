package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"party-whatsapp/internal/models"
	"party-whatsapp/internal/persona"
)

var (
	// ErrGuestNotFound is returned when a guest id has never been seen.
	ErrGuestNotFound = errors.New("guest not found")
	// ErrUnknownPersona is returned for persona ids outside the catalog.
	ErrUnknownPersona = errors.New("unknown persona")
	// ErrAlreadyTaken is returned when a persona is claimed by another guest.
	ErrAlreadyTaken = errors.New("persona already taken")
)

// Storage holds the full application state: guests, event and Santa
// configuration, and the persona claim map. Everything is guarded by one
// mutex; mutators write the snapshot before returning. A failed write
// is logged and in-memory state wins.
type Storage struct {
	mu      sync.RWMutex
	file    string
	adminID string
	log     zerolog.Logger

	guests map[string]models.Guest
	event  models.EventConfig
	santa  models.SantaConfig
	claims map[int]string
}

// NewStorage creates a storage instance backed by filePath, loading
// existing state if the file exists. The guest matching adminID gets the
// admin flag on creation.
func NewStorage(filePath, adminID string, log zerolog.Logger) (*Storage, error) {
	s := &Storage{
		file:    filePath,
		adminID: adminID,
		log:     log,
		guests:  make(map[string]models.Guest),
		claims:  make(map[int]string),
	}

	if _, err := os.Stat(filePath); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("failed to load storage: %w", err)
		}
	}

	return s, nil
}

func defaultGuest(id string) models.Guest {
	return models.Guest{
		ID:        id,
		TaskIndex: -1,
		FirstSeen: time.Now(),
	}
}

// GetOrCreate returns the guest record for id, creating a default one on
// first contact.
func (s *Storage) GetOrCreate(id string) models.Guest {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guests[id]
	if !ok {
		g = defaultGuest(id)
		g.IsAdmin = s.adminID != "" && id == s.adminID
		s.guests[id] = g
		s.saveLocked()
	}
	return g
}

// Update applies fn to the guest record and persists the result.
func (s *Storage) Update(id string, fn func(*models.Guest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guests[id]
	if !ok {
		return ErrGuestNotFound
	}
	fn(&g)
	s.guests[id] = g
	s.saveLocked()
	return nil
}

// ResetToDefault wipes the guest back to the default template, keeping
// identity (name, handle) and the admin flag. The guest's persona claim
// is released and any pairing link pointing at the guest from another
// record is cleared.
func (s *Storage) ResetToDefault(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guests[id]
	if !ok {
		return ErrGuestNotFound
	}

	if g.PersonaID != 0 && s.claims[g.PersonaID] == id {
		delete(s.claims, g.PersonaID)
	}
	for oid, other := range s.guests {
		if oid == id {
			continue
		}
		changed := false
		if other.RecipientID == id {
			other.RecipientID = ""
			changed = true
		}
		if other.BenefactorID == id {
			other.BenefactorID = ""
			changed = true
		}
		if changed {
			s.guests[oid] = other
		}
	}

	fresh := defaultGuest(id)
	fresh.Name = g.Name
	fresh.Handle = g.Handle
	fresh.IsAdmin = g.IsAdmin
	fresh.FirstSeen = g.FirstSeen
	s.guests[id] = fresh
	s.saveLocked()
	return nil
}

// Guests returns all guests sorted by first contact.
func (s *Storage) Guests() []models.Guest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Guest, 0, len(s.guests))
	for _, g := range s.guests {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

// Participants returns guests with the participation flag set.
func (s *Storage) Participants() []models.Guest {
	var out []models.Guest
	for _, g := range s.Guests() {
		if g.Participating {
			out = append(out, g)
		}
	}
	return out
}

// SantaPlayers returns guests opted into the gift game.
func (s *Storage) SantaPlayers() []models.Guest {
	var out []models.Guest
	for _, g := range s.Guests() {
		if g.SantaJoined {
			out = append(out, g)
		}
	}
	return out
}

// Event returns a copy of the event configuration.
func (s *Storage) Event() models.EventConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.event
}

// UpdateEvent applies fn to the event configuration and persists it.
func (s *Storage) UpdateEvent(fn func(*models.EventConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.event)
	s.saveLocked()
}

// Santa returns a copy of the Santa game configuration.
func (s *Storage) Santa() models.SantaConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.santa
}

// UpdateSanta applies fn to the Santa configuration and persists it.
func (s *Storage) UpdateSanta(fn func(*models.SantaConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.santa)
	s.saveLocked()
}

// Claims returns a copy of the persona claim map (persona id -> guest id).
func (s *Storage) Claims() map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]string, len(s.claims))
	for k, v := range s.claims {
		out[k] = v
	}
	return out
}

// ClaimPersona assigns the persona to the guest. The check-assign-persist
// sequence runs under the store mutex: two guests racing for the same
// persona cannot both win. Claiming a persona the guest already holds is
// idempotent; claiming a new one releases the previous. A random task
// index is picked on a fresh claim and stays fixed until re-claim.
func (s *Storage) ClaimPersona(personaID int, guestID string) (taskIndex int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := persona.ByID(personaID)
	if p == nil {
		return 0, ErrUnknownPersona
	}
	g, ok := s.guests[guestID]
	if !ok {
		return 0, ErrGuestNotFound
	}

	if holder, taken := s.claims[personaID]; taken {
		if holder != guestID {
			return 0, ErrAlreadyTaken
		}
		return g.TaskIndex, nil
	}

	if g.PersonaID != 0 && s.claims[g.PersonaID] == guestID {
		delete(s.claims, g.PersonaID)
	}

	s.claims[personaID] = guestID
	g.PersonaID = personaID
	g.TaskIndex = persona.PickTask(p)
	g.TaskStates = make([]models.TaskState, len(p.Tasks))
	for i := range g.TaskStates {
		g.TaskStates[i] = models.TaskUndone
	}
	s.guests[guestID] = g
	s.saveLocked()
	return g.TaskIndex, nil
}

// ReleasePersona clears the claim only if it still points at guestID.
func (s *Storage) ReleasePersona(personaID int, guestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claims[personaID] != guestID {
		return
	}
	delete(s.claims, personaID)
	if g, ok := s.guests[guestID]; ok && g.PersonaID == personaID {
		g.PersonaID = 0
		g.TaskIndex = -1
		g.TaskStates = nil
		s.guests[guestID] = g
	}
	s.saveLocked()
}

// ApplyPairing clears all pairing links on opted-in guests and links the
// given order into a single gift cycle: order[i] gives to order[i+1],
// the last gives to the first.
func (s *Storage) ApplyPairing(order []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, g := range s.guests {
		if g.SantaJoined {
			g.RecipientID = ""
			g.BenefactorID = ""
			s.guests[id] = g
		}
	}

	n := len(order)
	for i, giver := range order {
		receiver := order[(i+1)%n]
		g := s.guests[giver]
		g.RecipientID = receiver
		s.guests[giver] = g

		r := s.guests[receiver]
		r.BenefactorID = giver
		s.guests[receiver] = r
	}
	s.saveLocked()
}

// Save writes the snapshot to disk.
func (s *Storage) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeSnapshot()
}

// saveLocked persists under an already-held lock. Write failures are
// logged, not propagated: in-memory state stays authoritative.
func (s *Storage) saveLocked() {
	if err := s.writeSnapshot(); err != nil {
		s.log.Error().Err(err).Str("file", s.file).Msg("Failed to write snapshot")
	}
}

func (s *Storage) writeSnapshot() error {
	snap := models.Snapshot{
		Guests: s.guests,
		Event:  s.event,
		Santa:  s.santa,
		Claims: s.claims,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write-then-rename so a crash mid-write cannot truncate the snapshot.
	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp, s.file)
}

// Load reads the snapshot from disk, replacing in-memory state.
func (s *Storage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	if snap.Guests != nil {
		s.guests = snap.Guests
	}
	if snap.Claims != nil {
		s.claims = snap.Claims
	}
	s.event = snap.Event
	s.santa = snap.Santa
	return nil
}
