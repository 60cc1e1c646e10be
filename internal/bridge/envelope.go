package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
)

// Envelope events. A bootstrap replaces the guest's whole store; a tx is
// the change list of a single host commit.
const (
	EventBootstrap = "bootstrap"
	EventTx        = "tx"
)

// Envelope is one framed replication message. Payload is the canonical
// encoding of either a fact set (bootstrap) or a change list (tx), so
// envelopes for equal states are byte-identical.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (e Envelope) encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", e.Event, err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event")
	}
	return env, nil
}

// bootstrapEnvelope captures the full durable-and-ephemeral image of snap.
// The guest resets onto it wholesale, local facts included, so the guest
// renders exactly what the host sees.
func bootstrapEnvelope(snap *store.Snapshot) (Envelope, error) {
	payload, err := fact.EncodeFacts(snap.Facts())
	if err != nil {
		return Envelope{}, fmt.Errorf("bootstrap envelope: %w", err)
	}
	return Envelope{Event: EventBootstrap, Payload: payload}, nil
}

func txEnvelope(changes []fact.Change) (Envelope, error) {
	payload, err := fact.EncodeChanges(changes)
	if err != nil {
		return Envelope{}, fmt.Errorf("tx envelope: %w", err)
	}
	return Envelope{Event: EventTx, Payload: payload}, nil
}
