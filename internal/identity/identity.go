// Package identity gives a participant device a stable visitor id and
// remembers which rooms it already completed.
package identity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	visitorKey   = "visitor_id"
	completedKey = "completed_rooms"
)

type Identity struct {
	store Store
	clock clockwork.Clock
}

func New(store Store, clock clockwork.Clock) *Identity {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Identity{store: store, clock: clock}
}

// VisitorID returns the persisted visitor id, generating it on first use.
func (i *Identity) VisitorID() (string, error) {
	id, ok, err := i.store.Get(visitorKey)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	id = fmt.Sprintf("v_%d_%s", i.clock.Now().UnixMilli(), random)
	if err := i.store.Set(visitorKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// NewSessionID builds the session id of a fresh attempt at roomCode.
func (i *Identity) NewSessionID(roomCode string) (string, error) {
	visitor, err := i.VisitorID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%d", roomCode, visitor, i.clock.Now().UnixMilli()), nil
}

func (i *Identity) MarkCompleted(roomCode string) error {
	rooms, err := i.completedRooms()
	if err != nil {
		return err
	}
	for _, r := range rooms {
		if strings.EqualFold(r, roomCode) {
			return nil
		}
	}
	data, err := json.Marshal(append(rooms, roomCode))
	if err != nil {
		return err
	}
	return i.store.Set(completedKey, string(data))
}

func (i *Identity) HasCompleted(roomCode string) (bool, error) {
	rooms, err := i.completedRooms()
	if err != nil {
		return false, err
	}
	for _, r := range rooms {
		if strings.EqualFold(r, roomCode) {
			return true, nil
		}
	}
	return false, nil
}

func (i *Identity) completedRooms() ([]string, error) {
	raw, ok, err := i.store.Get(completedKey)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var rooms []string
	if err := json.Unmarshal([]byte(raw), &rooms); err != nil {
		return nil, fmt.Errorf("decode completed rooms: %w", err)
	}
	return rooms, nil
}
