package source

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/sydney-events/internal/event"
)

const (
	timeOutName   = "Time Out Sydney"
	timeOutOrigin = "https://www.timeout.com"
	timeOutURL    = timeOutOrigin + "/sydney/things-to-do/things-to-do-in-sydney-this-week"
	timeOutAltURL = timeOutOrigin + "/sydney/things-to-do"
)

// TimeOut extracts listings from Time Out Sydney. The weekly roundup page
// moves around, so a fetch failure on the primary URL falls through to the
// section index before the source is declared unavailable.
type TimeOut struct {
	opts   Options
	altURL string
	client *client
}

func NewTimeOut(opts Options) *TimeOut {
	opts.normalize()
	alt := timeOutAltURL
	if opts.BaseURL == "" {
		opts.BaseURL = timeOutURL
	} else {
		alt = ""
	}
	return &TimeOut{opts: opts, altURL: alt, client: newClient(opts.Timeout)}
}

func (s *TimeOut) Name() string { return timeOutName }

func (s *TimeOut) Fetch(ctx context.Context) ([]*event.Event, []SoftError, error) {
	doc, err := s.client.get(ctx, s.opts.BaseURL)
	if err != nil && s.altURL != "" {
		doc, err = s.client.get(ctx, s.altURL)
	}
	if err != nil {
		return nil, nil, &UnavailableError{Source: timeOutName, Err: err}
	}

	var events []*event.Event
	var soft []SoftError

	eachJSONLD(doc, func(n ldNode) {
		if n.Type != "ItemList" {
			return
		}
		for _, item := range n.ItemListElement {
			if item.Type != "ListItem" {
				continue
			}
			evt, ok := s.fromListItem(item.Item)
			if !ok {
				soft = append(soft, SoftError{Source: timeOutName, Detail: "list item missing title or url"})
				continue
			}
			events = append(events, evt)
		}
	}, func(detail string) {
		soft = append(soft, SoftError{Source: timeOutName, Detail: detail})
	})

	doc.Find(`article, div[class*="card"], div[class*="listing"]`).
		Each(func(_ int, card *goquery.Selection) {
			if evt, ok := s.fromCard(card); ok {
				events = append(events, evt)
			}
		})

	return dedupe(events, s.opts.MaxEvents), soft, nil
}

func (s *TimeOut) fromListItem(n ldNode) (*event.Event, bool) {
	title := cleanText(n.Name)
	if title == "" || n.URL == "" {
		return nil, false
	}
	return &event.Event{
		SourceName:  timeOutName,
		SourceURL:   absoluteURL(timeOutOrigin, n.URL),
		Title:       title,
		City:        s.opts.City,
		Description: truncate(cleanText(n.Description), maxDescription),
		Category:    n.Type,
		ImageURL:    n.imageRef(),
	}, true
}

func (s *TimeOut) fromCard(card *goquery.Selection) (*event.Event, bool) {
	title := cardTitle(card)
	link := absoluteURL(timeOutOrigin, cardLink(card))
	if title == "" || link == "" {
		return nil, false
	}

	dateString := cleanText(card.Find(`time, [class*="date"], [class*="when"]`).First().Text())
	description := truncate(cleanText(card.Find(`p, [class*="description"], [class*="standfirst"]`).First().Text()), maxDescription)
	venue := cleanText(card.Find(`[class*="venue"], [class*="location"]`).First().Text())
	category := cleanText(card.Find(`[class*="category"], [class*="tag"], [class*="label"]`).First().Text())

	return &event.Event{
		SourceName:  timeOutName,
		SourceURL:   link,
		Title:       title,
		DateTime:    event.ParseDate(dateString),
		DateString:  dateString,
		VenueName:   venue,
		City:        s.opts.City,
		Description: description,
		Category:    category,
		ImageURL:    imageURL(card),
	}, true
}
