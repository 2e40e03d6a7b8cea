// Package service bundles the translation client, the speech client and the
// audio cache behind the calls the pipeline and the bridge make.
package service

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/cache"
	"github.com/dgnsrekt/subvoice/internal/remote"
	"golang.org/x/sync/singleflight"
)

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Synthesizer returns speech for text as a data URI.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// CachedSynthesizer serves speech from the audio cache and only calls the
// wrapped synthesizer on a miss. Concurrent misses for the same key share one
// call.
type CachedSynthesizer struct {
	next  Synthesizer
	cache *cache.AudioCache
	group singleflight.Group

	logger *log.Logger
}

// NewCachedSynthesizer wraps next with c.
func NewCachedSynthesizer(next Synthesizer, c *cache.AudioCache) *CachedSynthesizer {
	return &CachedSynthesizer{
		next:   next,
		cache:  c,
		logger: log.WithPrefix("service"),
	}
}

// Synthesize implements Synthesizer.
func (s *CachedSynthesizer) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", remote.ErrEmptyText
	}

	key := cache.Key(text, lang)
	if audio, ok := s.cache.Get(key); ok {
		s.logger.Debug("audio cache hit", "lang", lang, "text", text)
		return audio, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		if audio, ok := s.cache.Get(key); ok {
			return audio, nil
		}
		audio, err := s.next.Synthesize(ctx, text, lang)
		if err != nil {
			return "", err
		}
		s.cache.Put(key, audio)
		return audio, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.logger.Debug("shared synthesis call", "lang", lang, "text", text)
	}
	return v.(string), nil
}

// Service is the background worker shared by every session.
type Service struct {
	translator  Translator
	synthesizer *CachedSynthesizer
	cache       *cache.AudioCache
}

// New builds a service from the given clients. capacity bounds the audio
// cache; zero uses cache.DefaultCapacity.
func New(translator Translator, synthesizer Synthesizer, capacity int) *Service {
	if capacity <= 0 {
		capacity = cache.DefaultCapacity
	}
	c := cache.NewAudioCache(capacity)
	return &Service{
		translator:  translator,
		synthesizer: NewCachedSynthesizer(synthesizer, c),
		cache:       c,
	}
}

// NewRemote builds a service backed by the Google endpoints in cfg.
func NewRemote(cfg remote.Config, capacity int) *Service {
	return New(remote.NewTranslator(cfg), remote.NewSynthesizer(cfg), capacity)
}

// Translate implements Translator.
func (s *Service) Translate(ctx context.Context, text, lang string) (string, error) {
	return s.translator.Translate(ctx, text, lang)
}

// Synthesize implements Synthesizer, serving from the cache when it can.
func (s *Service) Synthesize(ctx context.Context, text, lang string) (string, error) {
	return s.synthesizer.Synthesize(ctx, text, lang)
}

// CacheStats returns the audio cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache drops every cached clip.
func (s *Service) ClearCache() {
	s.cache.Clear()
}
