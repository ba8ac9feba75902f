// Package extract recovers the raw content record from a Douyin share page
// by trying each known inline JSON format in turn.
package extract

import (
	"errors"

	"github.com/rs/zerolog"

	"dyfetch/internal/media"
)

// errNoMatch marks a strategy miss. The chain moves on to the next strategy.
var errNoMatch = errors.New("no match")

// Extractor runs a strategy chain over share pages.
type Extractor struct {
	strategies []Strategy
	logger     zerolog.Logger
}

// New returns an Extractor using DefaultStrategies.
func New(logger zerolog.Logger) *Extractor {
	return &Extractor{
		strategies: DefaultStrategies(),
		logger:     logger,
	}
}

// Extract parses html and runs the default chain with logging disabled.
func Extract(html, id string) (Payload, error) {
	page, err := NewPage(html, id)
	if err != nil {
		return Payload{}, media.Wrap(media.KindPageStructureChanged, err, "unreadable share page")
	}
	return New(zerolog.Nop()).ExtractPage(page)
}

// ExtractPage returns the payload from the first strategy that matches.
// A platform rejection stops the chain. When every strategy misses the
// error is media.ErrPageStructureChanged.
func (e *Extractor) ExtractPage(page *Page) (Payload, error) {
	for _, s := range e.strategies {
		payload, err := s.Func(page)
		if err == nil {
			e.logger.Debug().
				Str("strategy", s.Name).
				Str("content_id", page.ID).
				Str("kind", payload.Kind.String()).
				Msg("Payload extracted")
			return payload, nil
		}
		if !errors.Is(err, errNoMatch) {
			return Payload{}, err
		}
		e.logger.Debug().
			Str("strategy", s.Name).
			Str("content_id", page.ID).
			Err(err).
			Msg("Strategy missed")
	}
	return Payload{}, media.Errorf(media.KindPageStructureChanged,
		"no known payload format matched share page %s; the page structure may have changed", page.ID)
}
