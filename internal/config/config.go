package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DataDir       string
	AdminID       string
	PartyChatLink string
	ChannelID     string
	AnimationRef  string

	// Defaults for the event wizard; the admin can overwrite all of them.
	EventName     string
	EventLocation string
	EventDate     string
}

// LoadConfig loads configuration from a .env file (if present) and
// environment variables, falling back to defaults.
func LoadConfig() *Config {
	// Missing .env is fine; env vars still apply.
	_ = godotenv.Load()

	return &Config{
		DataDir:       getEnv("PARTY_DATA_DIR", "data"),
		AdminID:       os.Getenv("ADMIN_ID"),
		PartyChatLink: os.Getenv("PARTY_CHAT_LINK"),
		ChannelID:     os.Getenv("PARTY_CHANNEL_ID"),
		AnimationRef:  os.Getenv("PARTY_ANIMATION_REF"),
		EventName:     getEnv("EVENT_NAME", "New Year Party"),
		EventLocation: getEnv("EVENT_LOCATION", "Venue TBD"),
		EventDate:     getEnv("EVENT_DATE", "December 31"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
