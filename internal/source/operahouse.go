package source

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/sydney-events/internal/event"
)

const (
	operaHouseName    = "Sydney Opera House"
	operaHouseOrigin  = "https://www.sydneyoperahouse.com"
	operaHouseURL     = operaHouseOrigin + "/whats-on"
	operaHouseAddress = "Bennelong Point, Sydney NSW 2000"
)

// OperaHouse extracts performances from the Sydney Opera House what's-on
// page. The venue is fixed; only the program varies.
type OperaHouse struct {
	opts   Options
	client *client
}

func NewOperaHouse(opts Options) *OperaHouse {
	opts.normalize()
	if opts.BaseURL == "" {
		opts.BaseURL = operaHouseURL
	}
	return &OperaHouse{opts: opts, client: newClient(opts.Timeout)}
}

func (s *OperaHouse) Name() string { return operaHouseName }

var operaHouseLDTypes = map[string]bool{
	"Event":        true,
	"MusicEvent":   true,
	"TheaterEvent": true,
}

func (s *OperaHouse) Fetch(ctx context.Context) ([]*event.Event, []SoftError, error) {
	doc, err := s.client.get(ctx, s.opts.BaseURL)
	if err != nil {
		return nil, nil, &UnavailableError{Source: operaHouseName, Err: err}
	}

	var events []*event.Event
	var soft []SoftError

	eachJSONLD(doc, func(n ldNode) {
		if !operaHouseLDTypes[n.Type] {
			return
		}
		evt, ok := s.fromJSONLD(n)
		if !ok {
			soft = append(soft, SoftError{Source: operaHouseName, Detail: "ld+json event missing title or url"})
			return
		}
		events = append(events, evt)
	}, func(detail string) {
		soft = append(soft, SoftError{Source: operaHouseName, Detail: detail})
	})

	doc.Find(`article[class*="event"], article[class*="show"], div[class*="event-card"], div[class*="show-card"]`).
		Each(func(_ int, card *goquery.Selection) {
			if evt, ok := s.fromCard(card); ok {
				events = append(events, evt)
			}
		})

	return dedupe(events, s.opts.MaxEvents), soft, nil
}

func (s *OperaHouse) fromJSONLD(n ldNode) (*event.Event, bool) {
	title := cleanText(n.Name)
	if title == "" || n.URL == "" {
		return nil, false
	}

	_, address := n.place()
	if cleanText(address) == "" {
		address = operaHouseAddress
	}

	return &event.Event{
		SourceName:   operaHouseName,
		SourceURL:    absoluteURL(operaHouseOrigin, n.URL),
		Title:        title,
		DateTime:     event.ParseDate(n.StartDate),
		DateString:   n.StartDate,
		VenueName:    operaHouseName,
		VenueAddress: cleanText(address),
		City:         s.opts.City,
		Description:  truncate(cleanText(n.Description), maxDescription),
		Category:     strings.TrimSuffix(n.Type, "Event"),
		ImageURL:     n.imageRef(),
	}, true
}

func (s *OperaHouse) fromCard(card *goquery.Selection) (*event.Event, bool) {
	title := cardTitle(card)
	link := absoluteURL(operaHouseOrigin, cardLink(card))
	if title == "" || link == "" {
		return nil, false
	}

	dateString := cleanText(card.Find(`time, [class*="date"], [class*="when"]`).First().Text())
	description := truncate(cleanText(card.Find(`p, [class*="description"], [class*="summary"]`).First().Text()), maxDescription)
	category := cleanText(card.Find(`[class*="category"], [class*="genre"], [class*="type"]`).First().Text())

	return &event.Event{
		SourceName:   operaHouseName,
		SourceURL:    link,
		Title:        title,
		DateTime:     event.ParseDate(dateString),
		DateString:   dateString,
		VenueName:    operaHouseName,
		VenueAddress: operaHouseAddress,
		City:         s.opts.City,
		Description:  description,
		Category:     category,
		ImageURL:     absoluteURL(operaHouseOrigin, imageURL(card)),
	}, true
}
