package source

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/sydney-events/internal/event"
)

const (
	eventbriteName   = "Eventbrite"
	eventbriteOrigin = "https://www.eventbrite.com.au"
	eventbriteURL    = eventbriteOrigin + "/d/australia--sydney/events/"
)

// Eventbrite extracts events from the Eventbrite city listing page.
// The page carries schema.org JSON-LD for most events; HTML cards fill in
// whatever the structured data misses.
type Eventbrite struct {
	opts   Options
	client *client
}

func NewEventbrite(opts Options) *Eventbrite {
	opts.normalize()
	if opts.BaseURL == "" {
		opts.BaseURL = eventbriteURL
	}
	return &Eventbrite{opts: opts, client: newClient(opts.Timeout)}
}

func (s *Eventbrite) Name() string { return eventbriteName }

func (s *Eventbrite) Fetch(ctx context.Context) ([]*event.Event, []SoftError, error) {
	doc, err := s.client.get(ctx, s.opts.BaseURL)
	if err != nil {
		return nil, nil, &UnavailableError{Source: eventbriteName, Err: err}
	}

	var events []*event.Event
	var soft []SoftError

	eachJSONLD(doc, func(n ldNode) {
		if n.Type != "Event" {
			return
		}
		evt, ok := s.fromJSONLD(n)
		if !ok {
			soft = append(soft, SoftError{Source: eventbriteName, Detail: "ld+json event missing title or url"})
			return
		}
		events = append(events, evt)
	}, func(detail string) {
		soft = append(soft, SoftError{Source: eventbriteName, Detail: detail})
	})

	doc.Find(`div[data-testid="event-card"], article[class*="event-card"], div[class*="eds-event-card"]`).
		Each(func(_ int, card *goquery.Selection) {
			if evt, ok := s.fromCard(card); ok {
				events = append(events, evt)
			}
		})

	return dedupe(events, s.opts.MaxEvents), soft, nil
}

func (s *Eventbrite) fromJSONLD(n ldNode) (*event.Event, bool) {
	title := cleanText(n.Name)
	if title == "" || n.URL == "" {
		return nil, false
	}
	venue, address := n.place()
	return &event.Event{
		SourceName:   eventbriteName,
		SourceURL:    n.URL,
		Title:        title,
		DateTime:     event.ParseDate(n.StartDate),
		DateString:   n.StartDate,
		VenueName:    cleanText(venue),
		VenueAddress: cleanText(address),
		City:         s.opts.City,
		Description:  truncate(cleanText(n.Description), maxDescription),
		ImageURL:     n.imageRef(),
	}, true
}

func (s *Eventbrite) fromCard(card *goquery.Selection) (*event.Event, bool) {
	title := cardTitle(card)
	link := absoluteURL(eventbriteOrigin, cardLink(card))
	if title == "" || link == "" {
		return nil, false
	}

	dateString := cleanText(card.Find(`p[class*="date"], [class*="event-card__date"]`).First().Text())
	venue := cleanText(card.Find(`[class*="location"], [class*="venue"]`).First().Text())

	return &event.Event{
		SourceName: eventbriteName,
		SourceURL:  link,
		Title:      title,
		DateTime:   event.ParseDate(dateString),
		DateString: dateString,
		VenueName:  venue,
		City:       s.opts.City,
		ImageURL:   imageURL(card),
	}, true
}
