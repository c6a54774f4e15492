// Package crypto implements the message encryption boundary: per-conversation
// key derivation and the AES-256-GCM envelope codec. Keys are recomputed on
// demand from the master secret and never persisted.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log"
)

const fallbackKeyPrefix = "conversation-key-"

// KeyProvider derives a deterministic 256-bit key per conversation.
//
// With a master key configured, the key is HMAC-SHA256(masterKey, conversationID).
// Without one (insecure dev mode only) it degrades to SHA-256 of a static
// prefix plus the conversation id, which anyone who knows the id can recompute.
type KeyProvider struct {
	masterKey []byte
}

func NewKeyProvider(masterKey string) *KeyProvider {
	return &KeyProvider{masterKey: []byte(masterKey)}
}

// ConversationKey returns the base64-encoded 32-byte key for a conversation.
// Same id and master key always yield the same key; callers never cache it.
func (p *KeyProvider) ConversationKey(conversationID string) string {
	if len(p.masterKey) > 0 {
		mac := hmac.New(sha256.New, p.masterKey)
		mac.Write([]byte(conversationID))
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}

	log.Printf("WARNING: deriving dev-only fallback key for conversation %s; set MESSAGE_MASTER_KEY in production", conversationID)
	sum := sha256.Sum256([]byte(fallbackKeyPrefix + conversationID))
	return base64.StdEncoding.EncodeToString(sum[:])
}
