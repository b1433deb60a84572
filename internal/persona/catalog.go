package persona

import "math/rand"

// Persona is a pre-authored color/role bundle with candidate secret tasks.
// The catalog is fixed at startup; claim state lives in storage.
type Persona struct {
	ID    int
	Emoji string
	Color string
	Role  string
	Tasks []string
}

// Catalog is the fixed persona list, in display order.
var Catalog = []Persona{
	{
		ID: 1, Emoji: "🔴", Color: "Red", Role: "Fiery Christmas Hype-maker",
		Tasks: []string{
			"At least three times tonight, nudge people into a toast or a cheers. Keep it fun, never pushy 😉",
			"Get the whole room to clink glasses at the same moment at least once.",
			"Start one round of loud applause for the host out of nowhere.",
		},
	},
	{
		ID: 2, Emoji: "🟢", Color: "Green", Role: "Chief Tree Decorator",
		Tasks: []string{
			"Quietly convince at least three people to take a photo with you next to something green.",
			"Hang one small improvised decoration somewhere nobody expects.",
			"Get two guests to argue (playfully) about the best way to decorate a tree.",
		},
	},
	{
		ID: 3, Emoji: "🔵", Color: "Blue", Role: "Snowy Chill-master",
		Tasks: []string{
			"At least three times, appear next to anyone saying \"cold\" or \"hot\" and drop an icy one-liner 😏",
			"Convince someone to step outside with you \"to check for snow\".",
			"Teach one guest your most dramatic shiver.",
		},
	},
	{
		ID: 4, Emoji: "🟡", Color: "Yellow", Role: "Sunshine of the Party",
		Tasks: []string{
			"Rescue at least three awkward silences tonight with a joke or a story.",
			"Make one person who looks bored laugh within five minutes of noticing them.",
			"Collect three compliments for the food and deliver them to whoever cooked, theatrically.",
		},
	},
	{
		ID: 5, Emoji: "🟣", Color: "Purple", Role: "Mage of Secret Gifts",
		Tasks: []string{
			"Slip someone a tiny surprise: a note, a sticker, a sweet compliment — without being caught.",
			"Leave a kind anonymous note where its owner will definitely find it.",
			"Grant three \"wishes\" tonight: overhear someone wanting something small and make it happen.",
		},
	},
	{
		ID: 6, Emoji: "🧡", Color: "Orange", Role: "Tangerine Smuggler",
		Tasks: []string{
			"Mention tangerines or oranges at least three times tonight and build a bit around it.",
			"Sneak a tangerine into someone's pocket or bag, then help them \"discover\" it later.",
			"Organize an impromptu tangerine toss with at least two other guests.",
		},
	},
}

// ByID returns the catalog entry, or nil for an unknown id.
func ByID(id int) *Persona {
	for i := range Catalog {
		if Catalog[i].ID == id {
			return &Catalog[i]
		}
	}
	return nil
}

// Available returns the personas not present in the claim map, in catalog order.
func Available(claims map[int]string) []Persona {
	var free []Persona
	for _, p := range Catalog {
		if _, taken := claims[p.ID]; !taken {
			free = append(free, p)
		}
	}
	return free
}

// PickTask selects one candidate task uniformly at random and returns its
// index. The choice is fixed for the guest once made.
func PickTask(p *Persona) int {
	return rand.Intn(len(p.Tasks))
}
