// Package drone provides the registry of drone identities that waypoints
// refer to by foreign key.
package drone

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrDroneNotFound = errors.New("drone not found")
	ErrLastDrone     = errors.New("at least one drone must remain")
)

// Palette holds the colors cycled through for new drones.
var Palette = []string{
	"#FF5733", // orange/red
	"#33A8FF", // blue
	"#33FF57", // green
	"#F033FF", // purple
	"#FFFF33", // yellow
	"#FF33A8", // pink
	"#33FFF5", // cyan
}

// DefaultID is the identity of the drone every new registry starts with.
const DefaultID = "drone-1"

// Drone is a single vehicle whose trajectory is being planned.
type Drone struct {
	ID        string `json:"id" msgpack:"id"`
	Name      string `json:"name" msgpack:"name"`
	Color     string `json:"color" msgpack:"color"`
	IsVisible bool   `json:"isVisible" msgpack:"isVisible"`
}

// Update lists the drone fields that may be changed after creation.
// Nil fields are left alone.
type Update struct {
	Name      *string `json:"name,omitempty"`
	Color     *string `json:"color,omitempty"`
	IsVisible *bool   `json:"isVisible,omitempty"`
}

// Registry holds drones in creation order along with the current selection.
// It always contains at least one drone.
type Registry struct {
	mu sync.RWMutex

	drones   []*Drone
	selected string
}

// NewRegistry returns a registry seeded with one visible default drone,
// which is also selected.
func NewRegistry() *Registry {
	return &Registry{
		drones: []*Drone{{
			ID:        DefaultID,
			Name:      "Drone 1",
			Color:     Palette[0],
			IsVisible: true,
		}},
		selected: DefaultID,
	}
}

// Add creates a drone and selects it. An empty name or color falls back
// to "Drone n" and the palette entry for n, where n is the new count.
func (r *Registry) Add(name, color string) Drone {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.drones) + 1
	d := &Drone{
		ID:        "drone-" + uuid.NewString(),
		Name:      name,
		Color:     color,
		IsVisible: true,
	}
	if d.Name == "" {
		d.Name = fmt.Sprintf("Drone %d", n)
	}
	if d.Color == "" {
		d.Color = Palette[n%len(Palette)]
	}

	r.drones = append(r.drones, d)
	r.selected = d.ID
	return *d
}

// Remove deletes a drone. The last remaining drone can't be removed. If
// the removed drone was selected, the first remaining drone becomes
// selected. Waypoints owned by the drone are not touched.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}
	if len(r.drones) <= 1 {
		return ErrLastDrone
	}

	r.drones = append(r.drones[:i], r.drones[i+1:]...)
	if r.selected == id {
		r.selected = r.drones[0].ID
	}
	return nil
}

// Update applies the non-nil fields of u to the drone.
func (r *Registry) Update(id string, u Update) (Drone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return Drone{}, fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}
	d := r.drones[i]
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Color != nil {
		d.Color = *u.Color
	}
	if u.IsVisible != nil {
		d.IsVisible = *u.IsVisible
	}
	return *d, nil
}

// ToggleVisibility flips the drone's visibility flag.
func (r *Registry) ToggleVisibility(id string) (Drone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return Drone{}, fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}
	r.drones[i].IsVisible = !r.drones[i].IsVisible
	return *r.drones[i], nil
}

// Select makes id the selected drone. An empty id clears the selection.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" && r.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrDroneNotFound, id)
	}
	r.selected = id
	return nil
}

// Selected returns the selected drone id, or "" if none.
func (r *Registry) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Get returns the drone with the given id.
func (r *Registry) Get(id string) (Drone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return *r.drones[i], true
	}
	return Drone{}, false
}

// List returns copies of all drones in creation order.
func (r *Registry) List() []Drone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Drone, 0, len(r.drones))
	for _, d := range r.drones {
		out = append(out, *d)
	}
	return out
}

// Len returns the number of registered drones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drones)
}

// Restore replaces the registry contents, e.g. when a saved mission is
// loaded. An empty list is rejected since the registry may never be empty.
// The selection is kept if it still exists, otherwise the first drone is
// selected.
func (r *Registry) Restore(drones []Drone) error {
	if len(drones) == 0 {
		return ErrLastDrone
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restored := make([]*Drone, 0, len(drones))
	seen := make(map[string]bool)
	for _, d := range drones {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		restored = append(restored, &d)
	}
	if len(restored) == 0 {
		return ErrLastDrone
	}

	r.drones = restored
	if r.indexOf(r.selected) < 0 {
		r.selected = r.drones[0].ID
	}
	return nil
}

// Ensure registers a drone with the given id if none exists, using the
// default name and color rules. It returns true if a drone was added.
// Imported waypoints can reference drones this registry has not seen.
func (r *Registry) Ensure(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" || r.indexOf(id) >= 0 {
		return false
	}
	n := len(r.drones) + 1
	r.drones = append(r.drones, &Drone{
		ID:        id,
		Name:      fmt.Sprintf("Drone %d", n),
		Color:     Palette[n%len(Palette)],
		IsVisible: true,
	})
	return true
}

func (r *Registry) indexOf(id string) int {
	for i, d := range r.drones {
		if d.ID == id {
			return i
		}
	}
	return -1
}
