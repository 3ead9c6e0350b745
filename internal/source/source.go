// Package source builds listing.Source adapters and registry
// descriptors from configuration.
package source

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/config"
	"github.com/citypulse/eventcache/internal/listing"
	"github.com/citypulse/eventcache/internal/registry"
	"github.com/citypulse/eventcache/internal/source/apisource"
	"github.com/citypulse/eventcache/internal/source/htmlsource"
)

// NewFromConfig builds one source adapter.
func NewFromConfig(c config.SourceConfig, logger *zap.Logger) (listing.Source, error) {
	switch c.Type {
	case "html":
		return htmlsource.New(htmlsource.Config{
			Name:      c.Name,
			URL:       c.URL,
			UserAgent: c.UserAgent,
			Selectors: htmlsource.Selectors{
				Row:          c.Selectors.Row,
				Name:         c.Selectors.Name,
				Venue:        c.Selectors.Venue,
				Neighborhood: c.Selectors.Neighborhood,
				Date:         c.Selectors.Date,
				StartTime:    c.Selectors.StartTime,
				EndTime:      c.Selectors.EndTime,
				Link:         c.Selectors.Link,
			},
		}, logger)
	case "api":
		return apisource.New(apisource.Config{
			Name:      c.Name,
			URL:       c.URL,
			UserAgent: c.UserAgent,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", c.Type)
	}
}

// BuildDescriptors maps source configuration onto registry descriptors.
func BuildDescriptors(cfgs []config.SourceConfig, logger *zap.Logger) ([]registry.Descriptor, error) {
	descriptors := make([]registry.Descriptor, 0, len(cfgs))
	for _, c := range cfgs {
		src, err := NewFromConfig(c, logger)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", c.Name, err)
		}
		descriptors = append(descriptors, registry.Descriptor{
			Label:    c.Name,
			Source:   src,
			Weight:   c.Weight,
			Rank:     c.Rank,
			ProbeURL: c.ProbeURL,
		})
	}
	return descriptors, nil
}
