package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"party-whatsapp/internal/config"
	"party-whatsapp/internal/handler"
	"party-whatsapp/internal/persona"
	"party-whatsapp/internal/storage"
	"party-whatsapp/internal/whatsapp"
)

func main() {
	fmt.Println("🎄 Party WhatsApp Bot")
	fmt.Println("=====================")

	// Load configuration
	cfg := config.LoadConfig()

	logger := zerolog.New(os.Stdout).With().Str("component", "Storage").Logger()

	// Initialize storage
	storagePath := fmt.Sprintf("%s/party.json", cfg.DataDir)
	store, err := storage.NewStorage(storagePath, cfg.AdminID, logger)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	// Initialize WhatsApp service
	whatsappService, err := whatsapp.NewService(&whatsapp.Config{
		DataDir: cfg.DataDir,
	})
	if err != nil {
		fmt.Printf("Error initializing WhatsApp service: %v\n", err)
		os.Exit(1)
	}

	// Initialize party handler
	partyHandler := handler.NewHandler(whatsappService, store, &handler.Config{
		AdminID:              cfg.AdminID,
		PartyChatLink:        cfg.PartyChatLink,
		ChannelID:            cfg.ChannelID,
		AnimationRef:         cfg.AnimationRef,
		DefaultEventName:     cfg.EventName,
		DefaultEventLocation: cfg.EventLocation,
		DefaultEventDate:     cfg.EventDate,
	})

	whatsappService.SetEventHandler(partyHandler.HandleEvent)

	// Connect to WhatsApp
	fmt.Println("Connecting to WhatsApp...")
	if err := whatsappService.Connect(); err != nil {
		fmt.Printf("Error connecting to WhatsApp: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Connected to WhatsApp!")
	fmt.Println("The bot is now listening for party guests.")

	// Start interactive CLI
	go startCLI(store)

	// Wait for interrupt signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	fmt.Println("\n\nShutting down...")
	if err := store.Save(); err != nil {
		fmt.Printf("Error saving snapshot: %v\n", err)
	}
	whatsappService.Disconnect()
	fmt.Println("Goodbye! 👋")
}

func startCLI(store *storage.Storage) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Println("\nCommands:")
		fmt.Println("  1. View all guests")
		fmt.Println("  2. View Santa pairs")
		fmt.Println("  3. View event status")
		fmt.Println("  4. Exit")
		fmt.Print("\nEnter command (1-4): ")

		if !scanner.Scan() {
			break
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			viewAllGuests(store)
		case "2":
			viewSantaPairs(store)
		case "3":
			viewEventStatus(store)
		case "4":
			fmt.Println("Exiting...")
			os.Exit(0)
		default:
			fmt.Println("Invalid command. Please try again.")
		}
	}
}

func viewAllGuests(store *storage.Storage) {
	guests := store.Guests()
	if len(guests) == 0 {
		fmt.Println("\nNo guests found.")
		return
	}

	fmt.Printf("\n📋 All Guests (%d total):\n", len(guests))
	fmt.Println(strings.Repeat("-", 60))
	for _, g := range guests {
		name := g.Name
		if name == "" {
			name = g.ID
		}
		fmt.Printf("Name: %s\n", name)
		fmt.Printf("Participating: %v\n", g.Participating)
		if p := persona.ByID(g.PersonaID); p != nil {
			fmt.Printf("Persona: %s %s (%s)\n", p.Emoji, p.Color, p.Role)
		}
		if g.Dish != "" || g.Drink != "" || g.Dessert != "" {
			fmt.Printf("Bringing: %s / %s / %s\n", g.Dish, g.Drink, g.Dessert)
		}
		fmt.Printf("Santa: %v\n", g.SantaJoined)
		fmt.Println(strings.Repeat("-", 60))
	}
}

func viewSantaPairs(store *storage.Storage) {
	players := store.SantaPlayers()
	if len(players) == 0 {
		fmt.Println("\nNo Santa players yet.")
		return
	}

	fmt.Printf("\n🎅 Santa players (%d total):\n", len(players))
	fmt.Println(strings.Repeat("-", 60))
	for _, g := range players {
		recipient := "(not paired)"
		if g.RecipientID != "" {
			r := store.GetOrCreate(g.RecipientID)
			recipient = r.Name
			if recipient == "" {
				recipient = r.ID
			}
		}
		gift := ""
		if g.GiftPrepared {
			gift = " [gift ready]"
		}
		name := g.Name
		if name == "" {
			name = g.ID
		}
		fmt.Printf("%s -> %s%s\n", name, recipient, gift)
	}
	fmt.Println(strings.Repeat("-", 60))
}

func viewEventStatus(store *storage.Storage) {
	ev := store.Event()
	santa := store.Santa()

	fmt.Println("\n🎉 Event status:")
	fmt.Printf("Active: %v\n", ev.Active)
	if ev.Name != "" {
		fmt.Printf("Name: %s\nLocation: %s\nDate: %s\n", ev.Name, ev.Location, ev.DateText)
	}
	if ev.Code != "" {
		fmt.Printf("Join code: %s\n", ev.Code)
	}
	fmt.Printf("Santa registration open: %v, started: %v\n", santa.RegistrationOpen, santa.Started)
}
