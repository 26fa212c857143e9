// Package profile resolves user identifiers to presentation data.
package profile

import (
	"fmt"
	"sync"
	"time"
)

// Profile is what a ringing notification shows about the caller.
type Profile struct {
	ID          string
	DisplayName string
	AvatarRef   string
	UpdatedAt   time.Time
}

// Directory is an in-memory Resolver.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	now      func() time.Time
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		profiles: make(map[string]Profile),
		now:      time.Now,
	}
}

// Put stores or replaces the profile of p.ID.
func (d *Directory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = d.now()
	}
	if p.AvatarRef == "" {
		p.AvatarRef = AvatarRef(p.ID, p.UpdatedAt)
	}
	d.profiles[p.ID] = p
}

// Resolve returns the profile of userID. Unknown users resolve to a profile
// named after the id, so a missing directory entry never blocks a notification.
func (d *Directory) Resolve(userID string) (Profile, error) {
	d.mu.RLock()
	p, ok := d.profiles[userID]
	d.mu.RUnlock()
	if ok {
		return p, nil
	}
	now := d.now()
	return Profile{
		ID:          userID,
		DisplayName: userID,
		AvatarRef:   AvatarRef(userID, now),
		UpdatedAt:   now,
	}, nil
}

// AvatarRef builds the image path of a user; the timestamp busts caches when
// the profile changes.
func AvatarRef(userID string, updatedAt time.Time) string {
	return fmt.Sprintf("/users/%s/image?time=%d", userID, updatedAt.UnixMilli())
}
