package memory

import (
	"slices"
	"sync"

	"github.com/adwski/webrtc-signal-relay/backend/model"
)

// Departure describes a binding removed from the store together with
// the members that remained in the channel at the moment of removal.
type Departure struct {
	Channel   string
	UserID    string
	Remaining []model.Endpoint
}

type channel struct {
	order   []string
	members map[string]model.Endpoint
}

func (ch *channel) remove(userID string) {
	delete(ch.members, userID)
	if i := slices.Index(ch.order, userID); i >= 0 {
		ch.order = slices.Delete(ch.order, i, i+1)
	}
}

func (ch *channel) except(userID string) []model.Endpoint {
	eps := make([]model.Endpoint, 0, len(ch.order))
	for _, id := range ch.order {
		if id != userID {
			eps = append(eps, ch.members[id])
		}
	}
	return eps
}

// MemStore is the connection registry: channel name -> user id -> endpoint.
// A channel exists only while it has at least one member.
type MemStore struct {
	mx *sync.Mutex
	db map[string]*channel
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx: &sync.Mutex{},
		db: make(map[string]*channel),
	}
}

// Join binds userID in channelName to ep, replacing previous binding if any.
// It returns member list after join and endpoints of all other members.
func (ms *MemStore) Join(channelName, userID string, ep model.Endpoint) ([]string, []model.Endpoint) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ch, ok := ms.db[channelName]
	if !ok {
		ch = &channel{members: make(map[string]model.Endpoint)}
		ms.db[channelName] = ch
	}
	if _, exists := ch.members[userID]; !exists {
		ch.order = append(ch.order, userID)
	}
	ch.members[userID] = ep
	return slices.Clone(ch.order), ch.except(userID)
}

// Leave removes userID from channelName. If binding existed
// it returns true and endpoints of remaining members.
func (ms *MemStore) Leave(channelName, userID string) (bool, []model.Endpoint) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ch, ok := ms.db[channelName]
	if !ok {
		return false, nil
	}
	if _, ok = ch.members[userID]; !ok {
		return false, nil
	}
	ch.remove(userID)
	if len(ch.members) == 0 {
		delete(ms.db, channelName)
		return true, nil
	}
	return true, ch.except(userID)
}

// RemoveHandle removes every binding of ep across all channels.
func (ms *MemStore) RemoveHandle(ep model.Endpoint) []Departure {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	var gone []Departure
	for name, ch := range ms.db {
		var removed []string
		for _, id := range ch.order {
			if ch.members[id] == ep {
				removed = append(removed, id)
			}
		}
		for _, id := range removed {
			ch.remove(id)
		}
		if len(ch.members) == 0 {
			delete(ms.db, name)
		}
		for _, id := range removed {
			gone = append(gone, Departure{
				Channel:   name,
				UserID:    id,
				Remaining: ch.except(id),
			})
		}
	}
	return gone
}

// MembersOf returns user ids of channel in join order.
func (ms *MemStore) MembersOf(channelName string) []string {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ch, ok := ms.db[channelName]
	if !ok {
		return []string{}
	}
	return slices.Clone(ch.order)
}

// RecipientsExcept returns endpoints of all channel members except userID.
func (ms *MemStore) RecipientsExcept(channelName, userID string) []model.Endpoint {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ch, ok := ms.db[channelName]
	if !ok {
		return nil
	}
	return ch.except(userID)
}

// EachRecipient calls fn for every channel member except userID while
// the store is locked, so fn must not block or call back into the store.
// It returns number of visited members.
func (ms *MemStore) EachRecipient(channelName, userID string, fn func(model.Endpoint)) int {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ch, ok := ms.db[channelName]
	if !ok {
		return 0
	}
	var n int
	for _, id := range ch.order {
		if id != userID {
			fn(ch.members[id])
			n++
		}
	}
	return n
}

// Channels returns number of live channels.
func (ms *MemStore) Channels() int {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	return len(ms.db)
}

// ChannelNames returns names of live channels in no particular order.
func (ms *MemStore) ChannelNames() []string {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	names := make([]string, 0, len(ms.db))
	for name := range ms.db {
		names = append(names, name)
	}
	return names
}
