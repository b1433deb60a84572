package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"party-whatsapp/internal/models"
	"party-whatsapp/internal/persona"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "party.json"), "admin-1", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return s
}

func TestGetOrCreate_Defaults(t *testing.T) {
	s := newTestStorage(t)

	g := s.GetOrCreate("guest-1")
	if g.ID != "guest-1" {
		t.Fatalf("expected id guest-1, got %q", g.ID)
	}
	if g.Participating || g.SantaJoined || g.HasPersona() {
		t.Fatal("expected a blank default record")
	}
	if g.TaskIndex != -1 {
		t.Fatalf("expected task index -1, got %d", g.TaskIndex)
	}
	if g.IsAdmin {
		t.Fatal("regular guest must not be admin")
	}
}

func TestGetOrCreate_AdminFlag(t *testing.T) {
	s := newTestStorage(t)

	g := s.GetOrCreate("admin-1")
	if !g.IsAdmin {
		t.Fatal("expected the configured admin id to get the admin flag")
	}
}

func TestClaimPersona_Exclusive(t *testing.T) {
	s := newTestStorage(t)
	s.GetOrCreate("a")
	s.GetOrCreate("b")

	idx, err := s.ClaimPersona(1, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := persona.ByID(1)
	if idx < 0 || idx >= len(p.Tasks) {
		t.Fatalf("task index %d out of range [0,%d)", idx, len(p.Tasks))
	}

	if _, err := s.ClaimPersona(1, "b"); err != ErrAlreadyTaken {
		t.Fatalf("expected ErrAlreadyTaken, got %v", err)
	}
	if s.Claims()[1] != "a" {
		t.Fatal("failed claim must leave state unchanged")
	}
}

func TestClaimPersona_IdempotentForHolder(t *testing.T) {
	s := newTestStorage(t)
	s.GetOrCreate("a")

	first, err := s.ClaimPersona(2, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.ClaimPersona(2, "a")
	if err != nil {
		t.Fatalf("re-claim by holder must succeed, got %v", err)
	}
	if first != second {
		t.Fatalf("re-claim must keep the task index: %d != %d", first, second)
	}
}

func TestClaimPersona_SwapsPrevious(t *testing.T) {
	s := newTestStorage(t)
	s.GetOrCreate("a")

	if _, err := s.ClaimPersona(1, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.ClaimPersona(3, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims := s.Claims()
	if _, stillHeld := claims[1]; stillHeld {
		t.Fatal("previous persona must be released on swap")
	}
	if claims[3] != "a" {
		t.Fatal("new persona must be claimed")
	}
	if g := s.GetOrCreate("a"); g.PersonaID != 3 {
		t.Fatalf("expected persona 3 on the guest, got %d", g.PersonaID)
	}
}

func TestClaimPersona_Unknown(t *testing.T) {
	s := newTestStorage(t)
	s.GetOrCreate("a")

	if _, err := s.ClaimPersona(99, "a"); err != ErrUnknownPersona {
		t.Fatalf("expected ErrUnknownPersona, got %v", err)
	}
}

func TestReleasePersona_OnlyHolder(t *testing.T) {
	s := newTestStorage(t)
	s.GetOrCreate("a")

	if _, err := s.ClaimPersona(1, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.ReleasePersona(1, "someone-else")
	if s.Claims()[1] != "a" {
		t.Fatal("release by a non-holder must be a no-op")
	}

	s.ReleasePersona(1, "a")
	if _, held := s.Claims()[1]; held {
		t.Fatal("release by the holder must clear the claim")
	}
	if g := s.GetOrCreate("a"); g.HasPersona() {
		t.Fatal("guest record must drop the persona on release")
	}
}

func TestResetToDefault(t *testing.T) {
	s := newTestStorage(t)
	s.GetOrCreate("a")
	s.GetOrCreate("b")

	if err := s.Update("a", func(g *models.Guest) {
		g.Name = "Alice"
		g.Handle = "alice"
		g.Participating = true
		g.Dish = "pie"
		g.SantaJoined = true
		g.Wish = "socks"
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.ClaimPersona(1, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.ApplyPairing([]string{"a", "b"})

	if err := s.ResetToDefault("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := s.GetOrCreate("a")
	if g.Name != "Alice" || g.Handle != "alice" {
		t.Fatal("identity must survive the reset")
	}
	if g.Participating || g.SantaJoined || g.HasPersona() || g.Dish != "" || g.Wish != "" {
		t.Fatal("all persona/menu/Santa fields must be back to defaults")
	}
	if _, held := s.Claims()[1]; held {
		t.Fatal("persona must become claimable again")
	}

	b := s.GetOrCreate("b")
	if b.RecipientID == "a" || b.BenefactorID == "a" {
		t.Fatal("no stale pairing link may point at the reset guest")
	}
}

func TestApplyPairing_Cycle(t *testing.T) {
	s := newTestStorage(t)
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		s.GetOrCreate(id)
		if err := s.Update(id, func(g *models.Guest) { g.SantaJoined = true }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	s.ApplyPairing(ids)

	// Following recipients n times from any guest returns to that guest.
	cur := "c"
	for i := 0; i < len(ids); i++ {
		g := s.GetOrCreate(cur)
		if g.RecipientID == "" {
			t.Fatalf("guest %s has no recipient", cur)
		}
		if g.RecipientID == cur {
			t.Fatalf("guest %s paired with themselves", cur)
		}
		r := s.GetOrCreate(g.RecipientID)
		if r.BenefactorID != cur {
			t.Fatalf("links not symmetric: %s -> %s but benefactor is %s", cur, g.RecipientID, r.BenefactorID)
		}
		cur = g.RecipientID
	}
	if cur != "c" {
		t.Fatalf("cycle did not close: ended at %s", cur)
	}
}

func TestApplyPairing_ClearsOldLinks(t *testing.T) {
	s := newTestStorage(t)
	for _, id := range []string{"a", "b", "c"} {
		s.GetOrCreate(id)
		if err := s.Update(id, func(g *models.Guest) { g.SantaJoined = true }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	s.ApplyPairing([]string{"a", "b", "c"})
	// c drops out; regeneration over the remaining two must not keep a
	// link pointing at c.
	if err := s.Update("c", func(g *models.Guest) {
		g.SantaJoined = false
		g.RecipientID = ""
		g.BenefactorID = ""
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.ApplyPairing([]string{"a", "b"})

	a, b := s.GetOrCreate("a"), s.GetOrCreate("b")
	if a.RecipientID != "b" || a.BenefactorID != "b" {
		t.Fatalf("expected a mutually paired with b, got recipient=%s benefactor=%s", a.RecipientID, a.BenefactorID)
	}
	if b.RecipientID != "a" || b.BenefactorID != "a" {
		t.Fatalf("expected b mutually paired with a, got recipient=%s benefactor=%s", b.RecipientID, b.BenefactorID)
	}
}

func TestSnapshotRoundtrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "party.json")

	s, err := NewStorage(file, "admin-1", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	s.GetOrCreate("a")
	if err := s.Update("a", func(g *models.Guest) {
		g.Name = "Alice"
		g.Participating = true
		g.Dish = "pie"
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.ClaimPersona(2, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.UpdateEvent(func(e *models.EventConfig) {
		e.Active = true
		e.Code = "AB12CD"
		e.Name = "NYE"
	})
	s.UpdateSanta(func(c *models.SantaConfig) {
		c.RegistrationOpen = true
		c.Budget = "500"
	})

	restored, err := NewStorage(file, "admin-1", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to reload storage: %v", err)
	}

	g := restored.GetOrCreate("a")
	if g.Name != "Alice" || !g.Participating || g.Dish != "pie" || g.PersonaID != 2 {
		t.Fatalf("guest did not survive the roundtrip: %+v", g)
	}
	if restored.Claims()[2] != "a" {
		t.Fatal("claims did not survive the roundtrip")
	}
	ev := restored.Event()
	if !ev.Active || ev.Code != "AB12CD" || ev.Name != "NYE" {
		t.Fatalf("event config did not survive the roundtrip: %+v", ev)
	}
	santa := restored.Santa()
	if !santa.RegistrationOpen || santa.Budget != "500" {
		t.Fatalf("santa config did not survive the roundtrip: %+v", santa)
	}

	// The temp file from the atomic write must not linger.
	if _, err := os.Stat(file + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp snapshot file left behind")
	}
}
