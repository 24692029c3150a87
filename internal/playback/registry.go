package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eric-livezey/void-bot/internal/observe"
)

// NewPlayerFunc builds the player for a guild. It is called at most once per
// guild between destroys.
type NewPlayerFunc func(guildID string) *Player

// RegistryOption is a functional option for [NewRegistry].
type RegistryOption func(*Registry)

// WithErrorHandler replaces the default error consumer, which logs every
// asynchronous player error at warn level.
func WithErrorHandler(fn func(guildID string, err error)) RegistryOption {
	return func(r *Registry) { r.onError = fn }
}

// WithRegistryMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithRegistryMetrics(m *observe.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// Registry maps guild IDs to players, creating them on first use.
//
// All methods are safe for concurrent use.
type Registry struct {
	newPlayer NewPlayerFunc
	onError   func(guildID string, err error)
	metrics   *observe.Metrics

	mu      sync.Mutex
	players map[string]*Player
}

// NewRegistry returns an empty registry that builds players with newPlayer.
func NewRegistry(newPlayer NewPlayerFunc, opts ...RegistryOption) *Registry {
	r := &Registry{
		newPlayer: newPlayer,
		players:   make(map[string]*Player),
	}
	for _, o := range opts {
		o(r)
	}
	if r.onError == nil {
		r.onError = logPlayerError
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

func logPlayerError(guildID string, err error) {
	slog.Warn("player error", "guild_id", guildID, "err", err)
}

// Of returns the player for guildID, creating it if needed.
func (r *Registry) Of(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := r.newPlayer(guildID)
	r.players[guildID] = p
	r.metrics.PlayersActive.Add(context.Background(), 1)
	go r.consumeErrors(p)
	return p
}

// Get returns the player for guildID without creating one.
func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Len returns the number of live players.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Destroy stops the guild's player and removes it. It reports whether a
// player existed.
func (r *Registry) Destroy(guildID string) bool {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	p.Destroy()
	r.metrics.PlayersActive.Add(context.Background(), -1)
	return true
}

// Close destroys every player.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Destroy(id)
	}
}

func (r *Registry) consumeErrors(p *Player) {
	for {
		select {
		case err := <-p.Errors():
			r.onError(p.GuildID(), err)
		case <-p.Done():
			return
		}
	}
}
