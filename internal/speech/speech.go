// Package speech caches synthesized audio and preloads it in a throttled background run.
package speech

import (
	"context"
	"sync"

	"github.com/example/vocastar/internal/ai"
	"golang.org/x/sync/singleflight"
)

// Synthesizer turns text into speech
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) (*ai.Audio, error)
}

// Cache maps text to synthesized audio for the lifetime of the process. Nothing is evicted.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*ai.Audio
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{items: make(map[string]*ai.Audio)}
}

// Get returns the cached audio for text
func (c *Cache) Get(text string) (*ai.Audio, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.items[text]
	return a, ok
}

// Put stores audio for text
func (c *Cache) Put(text string, audio *ai.Audio) {
	c.mu.Lock()
	c.items[text] = audio
	c.mu.Unlock()
}

// Len returns the number of cached texts
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Service is the single entry point for speech: every lookup goes through the shared cache,
// and concurrent requests for the same text share one external call.
type Service struct {
	synth Synthesizer
	cache *Cache
	group singleflight.Group
}

// NewService creates a cached speech service
func NewService(synth Synthesizer, cache *Cache) *Service {
	if cache == nil {
		cache = NewCache()
	}
	return &Service{synth: synth, cache: cache}
}

// Cache returns the shared cache
func (s *Service) Cache() *Cache {
	return s.cache
}

// Speak returns audio for text, calling the synthesizer only on a cache miss
func (s *Service) Speak(ctx context.Context, text string) (*ai.Audio, error) {
	if audio, ok := s.cache.Get(text); ok {
		return audio, nil
	}
	v, err, _ := s.group.Do(text, func() (interface{}, error) {
		if audio, ok := s.cache.Get(text); ok {
			return audio, nil
		}
		audio, err := s.synth.SynthesizeSpeech(ctx, text)
		if err != nil {
			return nil, err
		}
		s.cache.Put(text, audio)
		return audio, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ai.Audio), nil
}
