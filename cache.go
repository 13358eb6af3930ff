package howlhouse

import (
	"strings"
	"sync"
)

// Cache is the in-process view of self, the current room, and the room
// directory. It has exactly one writer (the dispatch loop), so every
// read that happens after a frame is processed observes that frame's
// effects. Readers get copies; membership slices are never shared.
type Cache struct {
	mu    sync.RWMutex
	self  *User
	room  *Room
	rooms map[string]Room
}

func newCache() *Cache {
	return &Cache{rooms: make(map[string]Room)}
}

// Self returns the authenticated identity, or nil before on_ready.
func (c *Cache) Self() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.self == nil {
		return nil
	}
	u := *c.self
	return &u
}

// Room returns a copy of the current room, or nil when not in one.
func (c *Cache) Room() *Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCopyLocked()
}

func (c *Cache) roomCopyLocked() *Room {
	if c.room == nil {
		return nil
	}
	r := *c.room
	r.Users = append([]User(nil), c.room.Users...)
	r.PreviewUsers = append([]UserPreview(nil), c.room.PreviewUsers...)
	return &r
}

// Rooms returns a snapshot of the room directory.
func (c *Cache) Rooms() []Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// InRoom reports whether a room is currently joined.
func (c *Cache) InRoom() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room != nil
}

func (c *Cache) setSelf(u User) {
	c.mu.Lock()
	c.self = &u
	c.mu.Unlock()
}

// setRoom replaces the current room wholesale; membership starts from
// the given seed list, not merged with any prior state.
func (c *Cache) setRoom(room Room, members []User) {
	c.mu.Lock()
	room.Users = append([]User(nil), members...)
	c.room = &room
	c.mu.Unlock()
}

func (c *Cache) clearRoom() {
	c.mu.Lock()
	c.room = nil
	c.mu.Unlock()
}

// addMember appends to the join-ordered membership, de-duplicating by
// user ID. Reports whether the user was newly added.
func (c *Cache) addMember(u User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return false
	}
	for _, existing := range c.room.Users {
		if existing.ID == u.ID {
			return false
		}
	}
	c.room.Users = append(c.room.Users, u)
	return true
}

// removeMember removes by user ID. Absence is a no-op, which keeps
// duplicate or out-of-order leave frames harmless.
func (c *Cache) removeMember(userID string) (User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return User{}, false
	}
	for i, u := range c.room.Users {
		if u.ID == userID {
			c.room.Users = append(c.room.Users[:i], c.room.Users[i+1:]...)
			return u, true
		}
	}
	return User{}, false
}

// replaceMembers swaps the membership wholesale from an authoritative
// fetch response. The room creator is flagged as admin.
func (c *Cache) replaceMembers(users []User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return
	}
	members := append([]User(nil), users...)
	for i := range members {
		if members[i].ID == c.room.CreatorID {
			members[i].Permissions.IsAdmin = true
		}
	}
	c.room.Users = members
}

// updateMember applies fn to the member with the given ID, returning
// the updated copy.
func (c *Cache) updateMember(userID string, fn func(*User)) (User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return User{}, false
	}
	for i := range c.room.Users {
		if c.room.Users[i].ID == userID {
			fn(&c.room.Users[i])
			return c.room.Users[i], true
		}
	}
	return User{}, false
}

// eachMember applies fn to every member; fn returns the updated user
// and whether it changed. Changed copies are reported back.
func (c *Cache) eachMember(fn func(*User) bool) []User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return nil
	}
	var changed []User
	for i := range c.room.Users {
		if fn(&c.room.Users[i]) {
			changed = append(changed, c.room.Users[i])
		}
	}
	return changed
}

// replaceDirectory swaps the room directory wholesale. Last write wins
// between the periodic refresh and manual fetches.
func (c *Cache) replaceDirectory(rooms []Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = make(map[string]Room, len(rooms))
	for _, r := range rooms {
		c.rooms[r.ID] = r
	}
}

// lookupMember resolves a user argument against the current room's
// membership: ID first, then username, then display name. A leading
// mention glyph is stripped.
func (c *Cache) lookupMember(argument string) (User, bool) {
	arg := strings.ToLower(strings.TrimPrefix(argument, "@"))

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.room == nil {
		return User{}, false
	}
	for _, pick := range []func(User) string{
		func(u User) string { return u.ID },
		func(u User) string { return u.Username },
		func(u User) string { return u.DisplayName },
	} {
		for _, u := range c.room.Users {
			if v := pick(u); v != "" && strings.ToLower(v) == arg {
				return u, true
			}
		}
	}
	return User{}, false
}
