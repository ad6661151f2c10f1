package town

import (
	"github.com/google/uuid"
)

// Session binds a participant to the secret token its connection uses to act
// within a town. The participant and token never change after construction;
// the credentials are attached later, once the external services have issued
// them.
type Session struct {
	Participant *Participant
	Token       string
	// VideoCredential lets the client join the town's video channel.
	VideoCredential string
	// StreamingCredential is the raw token payload the client supplied for the
	// music-streaming service, kept for reference only. The parsed credential
	// lives in the streaming token store.
	StreamingCredential string
}

func newSession(p *Participant) *Session {
	return &Session{
		Participant: p,
		Token:       uuid.NewString(),
	}
}
