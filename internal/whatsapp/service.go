package whatsapp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"party-whatsapp/internal/handler"
)

// EventHandler is the callback receiving classified inbound events.
type EventHandler func(handler.Event) error

type Config struct {
	DataDir string
}

// Service wraps the whatsmeow client and implements handler.Gateway.
type Service struct {
	client       *whatsmeow.Client
	cfg          *Config
	log          zerolog.Logger
	eventHandler EventHandler

	// recent inbound messages, kept so CopyMessage can re-deliver
	// media without revealing the origin
	cacheMu  sync.Mutex
	recent   map[handler.MessageRef]*waE2E.Message
	maxCache int
}

// NewService creates a new WhatsApp service
func NewService(cfg *Config) (*Service, error) {
	ctx := context.Background()
	logger := zerolog.New(os.Stdout).With().Str("component", "WhatsApp").Logger()

	// Use nil logger - sqlstore will use a no-op logger by default
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", cfg.DataDir), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	service := &Service{
		client:   client,
		cfg:      cfg,
		log:      logger,
		recent:   make(map[handler.MessageRef]*waE2E.Message),
		maxCache: 512,
	}

	client.AddEventHandler(func(evt interface{}) {
		service.handleRawEvent(evt)
	})

	return service, nil
}

// NormalizePhoneNumber strips formatting characters from a phone number.
func NormalizePhoneNumber(phoneNumber string) string {
	for _, ch := range []string{"+", " ", "-", "(", ")"} {
		phoneNumber = strings.ReplaceAll(phoneNumber, ch, "")
	}
	return phoneNumber
}

// Connect connects to WhatsApp, showing a QR code on first login.
func (s *Service) Connect() error {
	if s.client.Store.ID == nil {
		qrChan, _ := s.client.GetQRChannel(context.Background())
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				q, err := qrcode.New(evt.Code, qrcode.Medium)
				if err != nil {
					fmt.Printf("QR Code: %s\n", evt.Code)
					fmt.Println("Please scan this QR code with WhatsApp to connect.")
				} else {
					fmt.Println("\n" + q.ToSmallString(false))
					fmt.Println("📱 Scan the QR code above with WhatsApp (Settings > Linked Devices).")
				}
			} else {
				fmt.Printf("Login event: %s\n", evt.Event)
			}
		}
		return nil
	}

	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

func peerJID(peer string) types.JID {
	if strings.ContainsRune(peer, '@') {
		if jid, err := types.ParseJID(peer); err == nil {
			return jid
		}
	}
	return types.NewJID(NormalizePhoneNumber(peer), types.DefaultUserServer)
}

// SendText sends a text message and returns a reference to it.
func (s *Service) SendText(peer, text string) (handler.MessageRef, error) {
	jid := peerJID(peer)
	s.log.Debug().Str("jid", jid.String()).Msg("Sending message")

	resp, err := s.client.SendMessage(context.Background(), jid, &waE2E.Message{
		Conversation: &text,
	})
	if err != nil {
		return handler.MessageRef{}, fmt.Errorf("failed to send message: %w", err)
	}
	return handler.MessageRef{Chat: jid.User, ID: string(resp.ID)}, nil
}

// SendAnimation uploads a local video file and sends it as a gif-style
// animation.
func (s *Service) SendAnimation(peer, mediaRef string) error {
	data, err := os.ReadFile(mediaRef)
	if err != nil {
		return fmt.Errorf("failed to read animation file: %w", err)
	}

	ctx := context.Background()
	uploaded, err := s.client.Upload(ctx, data, whatsmeow.MediaVideo)
	if err != nil {
		return fmt.Errorf("failed to upload animation: %w", err)
	}

	_, err = s.client.SendMessage(ctx, peerJID(peer), &waE2E.Message{
		VideoMessage: &waE2E.VideoMessage{
			URL:           &uploaded.URL,
			DirectPath:    &uploaded.DirectPath,
			MediaKey:      uploaded.MediaKey,
			Mimetype:      ptr("video/mp4"),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    &uploaded.FileLength,
			GifPlayback:   ptr(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send animation: %w", err)
	}
	return nil
}

// CopyMessage re-delivers a recently received message to another peer.
// Only messages still in the in-memory cache can be copied.
func (s *Service) CopyMessage(targetPeer string, source handler.MessageRef) (handler.MessageRef, error) {
	s.cacheMu.Lock()
	msg, ok := s.recent[source]
	s.cacheMu.Unlock()
	if !ok {
		return handler.MessageRef{}, fmt.Errorf("message %s/%s is no longer available", source.Chat, source.ID)
	}

	jid := peerJID(targetPeer)
	resp, err := s.client.SendMessage(context.Background(), jid, msg)
	if err != nil {
		return handler.MessageRef{}, fmt.Errorf("failed to copy message: %w", err)
	}
	return handler.MessageRef{Chat: jid.User, ID: string(resp.ID)}, nil
}

func ptr[T any](v T) *T { return &v }

// handleRawEvent handles incoming WhatsApp events
func (s *Service) handleRawEvent(evt interface{}) {
	switch evt := evt.(type) {
	case *events.Message:
		s.handleMessage(evt)
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Info().Msg("Logged out from WhatsApp")
	}
}

// handleMessage translates an inbound WhatsApp message into a
// handler.Event and hands it to the registered handler.
func (s *Service) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe || msg.Message == nil {
		return
	}

	ref := handler.MessageRef{Chat: msg.Info.Chat.User, ID: string(msg.Info.ID)}
	s.remember(ref, msg.Message)

	ev := handler.Event{
		Sender:    msg.Info.Sender.User,
		Chat:      msg.Info.Chat.User,
		Name:      msg.Info.PushName,
		MessageID: string(msg.Info.ID),
	}

	replyTo := func(ci *waE2E.ContextInfo) {
		if ci != nil && ci.GetStanzaID() != "" {
			ev.ReplyTo = &handler.MessageRef{Chat: msg.Info.Chat.User, ID: ci.GetStanzaID()}
		}
	}

	switch {
	case msg.Message.GetConversation() != "":
		ev.Text = msg.Message.GetConversation()
	case msg.Message.GetExtendedTextMessage() != nil:
		ext := msg.Message.GetExtendedTextMessage()
		ev.Text = ext.GetText()
		replyTo(ext.GetContextInfo())
	case msg.Message.GetImageMessage() != nil:
		ev.HasMedia = true
		ev.Text = msg.Message.GetImageMessage().GetCaption()
		replyTo(msg.Message.GetImageMessage().GetContextInfo())
	case msg.Message.GetVideoMessage() != nil:
		ev.HasMedia = true
		ev.Text = msg.Message.GetVideoMessage().GetCaption()
		replyTo(msg.Message.GetVideoMessage().GetContextInfo())
	case msg.Message.GetStickerMessage() != nil:
		ev.HasMedia = true
		replyTo(msg.Message.GetStickerMessage().GetContextInfo())
	case msg.Message.GetAudioMessage() != nil:
		ev.HasMedia = true
		replyTo(msg.Message.GetAudioMessage().GetContextInfo())
	case msg.Message.GetDocumentMessage() != nil:
		ev.HasMedia = true
		replyTo(msg.Message.GetDocumentMessage().GetContextInfo())
	default:
		return
	}

	if s.eventHandler == nil {
		s.log.Info().Str("sender", ev.Sender).Str("text", ev.Text).Msg("Received message")
		return
	}
	if err := s.eventHandler(ev); err != nil {
		s.log.Error().Err(err).Msg("Error handling message")
	}
}

func (s *Service) remember(ref handler.MessageRef, msg *waE2E.Message) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if len(s.recent) >= s.maxCache {
		for k := range s.recent {
			delete(s.recent, k)
			break
		}
	}
	s.recent[ref] = msg
}

// SetEventHandler sets the handler for inbound events.
func (s *Service) SetEventHandler(h EventHandler) {
	s.eventHandler = h
}
