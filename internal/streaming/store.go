package streaming

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Credential is a per-(town, participant) access token for the streaming
// service, together with its expiry timestamp. The expiry is stored but not
// enforced here; acting on it is the caller's decision.
type Credential struct {
	AccessToken string `json:"access_token"`
	Expiry      int64  `json:"expiry"`
}

// TokenStore maps towns to their participants' streaming credentials. One
// store is constructed at process start and shared by every town controller.
// Credentials are held in memory only and are discarded when the participant
// leaves or the town is unregistered.
type TokenStore struct {
	mu    sync.RWMutex
	towns map[string]map[string]Credential
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		towns: make(map[string]map[string]Credential),
	}
}

// Register creates an empty credential map for a town.
func (s *TokenStore) Register(townID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.towns[townID] = make(map[string]Credential)
}

// Unregister discards a town's credential map and every credential in it.
func (s *TokenStore) Unregister(townID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.towns, townID)
}

// Put parses a raw token payload and stores the credential for a participant.
// Storing for an unregistered town is a no-op.
func (s *TokenStore) Put(townID, participantID, raw string) error {
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return fmt.Errorf("parse streaming credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if participants, ok := s.towns[townID]; ok {
		participants[participantID] = cred
	}
	return nil
}

// Get looks a credential up. Unknown towns and unknown participants are both
// simply absent, never an error.
func (s *TokenStore) Get(townID, participantID string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants, ok := s.towns[townID]
	if !ok {
		return Credential{}, false
	}
	cred, ok := participants[participantID]
	return cred, ok
}

// Remove discards a participant's credential.
func (s *TokenStore) Remove(townID, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if participants, ok := s.towns[townID]; ok {
		delete(participants, participantID)
	}
}
