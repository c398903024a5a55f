package scenario

import (
	"time"
)

// Context is the per-iteration variable bag, start timestamp, and cursor
// a scenario iteration carries across its steps.
type Context struct {
	Vars      map[string]string
	StartedAt time.Time
	Step      int // index of the step currently executing
}

// NewContext resets (or allocates) a Context for a fresh iteration.
func NewContext(reuse *Context) *Context {
	if reuse == nil {
		reuse = &Context{}
	}
	if reuse.Vars == nil {
		reuse.Vars = make(map[string]string, 8)
	} else {
		clear(reuse.Vars)
	}
	reuse.StartedAt = time.Now()
	reuse.Step = 0
	return reuse
}

// LoadRow copies a data-source row into the context's variable bag.
func (c *Context) LoadRow(row map[string]string) {
	for k, v := range row {
		c.Vars[k] = v
	}
}

// Set stores an extracted or replayed variable.
func (c *Context) Set(name, value string) {
	c.Vars[name] = value
}

// Get resolves a variable by name: session/extracted variables take
// priority, then the zero-argument builtin generators (${uuid},
// ${timestamp}, ${random_email}, ...).
func (c *Context) Get(name string) (string, bool) {
	if v, ok := c.Vars[name]; ok {
		return v, true
	}
	return resolveBuiltin(name)
}

// sessionEntry is one cached step result: the full set of variables that
// step extracted, plus the instant the entry expires.
type sessionEntry struct {
	vars   map[string]string
	expiry time.Time
}

// Session is the per-worker map of step name -> cached result. Its
// lifetime is the worker's, not one iteration's; it is never shared
// between workers.
type Session struct {
	entries map[string]sessionEntry
}

// NewSession allocates an empty session store.
func NewSession() *Session {
	return &Session{entries: make(map[string]sessionEntry)}
}

// Lookup returns the cached variables for stepName if present and not yet
// expired. Expired entries are evicted at read time; there is no
// background reaper.
func (s *Session) Lookup(stepName string, now time.Time) (map[string]string, bool) {
	e, ok := s.entries[stepName]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expiry) {
		delete(s.entries, stepName)
		return nil, false
	}
	return e.vars, true
}

// Store caches a copy of vars for stepName with expiry = now+ttl.
func (s *Session) Store(stepName string, vars map[string]string, now time.Time, ttl time.Duration) {
	cp := make(map[string]string, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	s.entries[stepName] = sessionEntry{vars: cp, expiry: now.Add(ttl)}
}
