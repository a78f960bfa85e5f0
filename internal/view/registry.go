package view

import "sync"

// Registry tracks mounted dashboards per user
type Registry struct {
	mu    sync.Mutex
	users map[string]int
	total int
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]int)}
}

// Track records d as mounted and returns the func that forgets it
func (r *Registry) Track(d *Dashboard) func() {
	userID := d.Session().UserID

	r.mu.Lock()
	r.users[userID]++
	r.total++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.total--
			if r.users[userID]--; r.users[userID] <= 0 {
				delete(r.users, userID)
			}
		})
	}
}

// Len returns the number of mounted dashboards
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Users returns the number of users with at least one dashboard
func (r *Registry) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
