// Package permctx decodes the opaque permissions context produced by the
// interactive authorization flow. The blob is hex: one mode byte, a 16-byte
// session id, then the owner's signature. The codec is pure and must stay the
// exact inverse of however the grant was built; nothing here talks to the
// chain or to storage.
package permctx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	modeLen      = 1
	sessionIDLen = 16
	headerLen    = modeLen + sessionIDLen
)

var (
	// ErrTooShort is returned when the context cannot hold a mode byte and a
	// full session id.
	ErrTooShort = errors.New("permissions context too short")
	// ErrBadSessionID is returned by Encode when the session id is not
	// exactly 16 bytes of hex.
	ErrBadSessionID = errors.New("session id must be 16 bytes of hex")
)

func decode(context string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(context, "0x"))
	if err != nil {
		return nil, fmt.Errorf("permissions context: %w", err)
	}
	if len(raw) < headerLen {
		return nil, ErrTooShort
	}
	return raw, nil
}

// SessionID extracts the 16-byte session id segment, hex encoded.
func SessionID(context string) (string, error) {
	raw, err := decode(context)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[modeLen:headerLen]), nil
}

// Signature extracts everything after the session id, hex encoded. An empty
// signature is legal at this layer; the chain rejects it, not the codec.
func Signature(context string) (string, error) {
	raw, err := decode(context)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[headerLen:]), nil
}

// Mode extracts the leading mode byte.
func Mode(context string) (byte, error) {
	raw, err := decode(context)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

// Encode builds a context from its parts; SessionID and Signature invert it.
// sessionID and signature are hex strings, with or without a 0x prefix.
func Encode(mode byte, sessionID, signature string) (string, error) {
	id, err := hex.DecodeString(strings.TrimPrefix(sessionID, "0x"))
	if err != nil || len(id) != sessionIDLen {
		return "", ErrBadSessionID
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("signature: %w", err)
	}
	raw := make([]byte, 0, headerLen+len(sig))
	raw = append(raw, mode)
	raw = append(raw, id...)
	raw = append(raw, sig...)
	return "0x" + hex.EncodeToString(raw), nil
}
