package handler

// MessageRef identifies a delivered message within a chat scope.
type MessageRef struct {
	Chat string
	ID   string
}

// Gateway is the outbound side of the messaging transport.
type Gateway interface {
	// SendText delivers text to a peer and returns a reference to the
	// delivered message, usable as a bridge anchor.
	SendText(peer, text string) (MessageRef, error)
	// SendAnimation delivers a pre-seeded animation/media reference.
	SendAnimation(peer, mediaRef string) error
	// CopyMessage re-delivers a previously received message to another
	// peer without revealing its origin.
	CopyMessage(targetPeer string, source MessageRef) (MessageRef, error)
}

// Event is one inbound message as delivered by the transport.
type Event struct {
	Sender    string // stable peer id of the author
	Chat      string // chat scope the message arrived in (== Sender for DMs)
	Name      string // display name, may be empty
	Handle    string // username/handle, may be empty
	Text      string
	MessageID string
	ReplyTo   *MessageRef // set when the message replies to another
	HasMedia  bool        // attachment present; Text may still carry a caption
}
