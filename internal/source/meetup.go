package source

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/sydney-events/internal/event"
)

const (
	meetupName   = "Meetup"
	meetupOrigin = "https://www.meetup.com"
	meetupURL    = meetupOrigin + "/find/?location=au--sydney&source=EVENTS"
)

// Meetup extracts events from the Meetup search page. The page is a
// Next.js app, so the primary strategy is decoding the __NEXT_DATA__
// payload; HTML cards are the fallback when the payload shape drifts.
type Meetup struct {
	opts   Options
	client *client
}

func NewMeetup(opts Options) *Meetup {
	opts.normalize()
	if opts.BaseURL == "" {
		opts.BaseURL = meetupURL
	}
	return &Meetup{opts: opts, client: newClient(opts.Timeout)}
}

func (s *Meetup) Name() string { return meetupName }

type meetupNode struct {
	Title       string `json:"title"`
	EventURL    string `json:"eventUrl"`
	DateTime    string `json:"dateTime"`
	Description string `json:"description"`
	EventType   string `json:"eventType"`
	Venue       struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"venue"`
	Group struct {
		Name string `json:"name"`
	} `json:"group"`
	Images []struct {
		BaseURL string `json:"baseUrl"`
	} `json:"images"`
}

type meetupPayload struct {
	Props struct {
		PageProps struct {
			SearchResults struct {
				Edges []struct {
					Node meetupNode `json:"node"`
				} `json:"edges"`
			} `json:"searchResults"`
		} `json:"pageProps"`
	} `json:"props"`
}

func (s *Meetup) Fetch(ctx context.Context) ([]*event.Event, []SoftError, error) {
	doc, err := s.client.get(ctx, s.opts.BaseURL)
	if err != nil {
		return nil, nil, &UnavailableError{Source: meetupName, Err: err}
	}

	var events []*event.Event
	var soft []SoftError

	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").Text())
	if raw != "" {
		var payload meetupPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			soft = append(soft, SoftError{Source: meetupName, Detail: "undecodable __NEXT_DATA__ payload"})
		} else {
			for _, edge := range payload.Props.PageProps.SearchResults.Edges {
				evt, ok := s.fromNode(edge.Node)
				if !ok {
					soft = append(soft, SoftError{Source: meetupName, Detail: "search result missing title or url"})
					continue
				}
				events = append(events, evt)
			}
		}
	}

	// HTML fallback only when the payload produced nothing; the cards
	// duplicate the payload events otherwise.
	if len(events) == 0 {
		doc.Find(`div[data-testid="categoryResults-eventCard"], a[class*="eventCard"]`).
			Each(func(_ int, card *goquery.Selection) {
				if evt, ok := s.fromCard(card); ok {
					events = append(events, evt)
				}
			})
	}

	return dedupe(events, s.opts.MaxEvents), soft, nil
}

func (s *Meetup) fromNode(n meetupNode) (*event.Event, bool) {
	title := cleanText(n.Title)
	if title == "" || n.EventURL == "" {
		return nil, false
	}

	evt := &event.Event{
		SourceName:  meetupName,
		SourceURL:   n.EventURL,
		Title:       title,
		DateTime:    event.ParseDate(n.DateTime),
		DateString:  n.DateTime,
		City:        s.opts.City,
		Description: truncate(cleanText(n.Description), maxDescription),
		Category:    cleanText(n.Group.Name),
	}
	if n.EventType == "PHYSICAL" {
		evt.VenueName = cleanText(n.Venue.Name)
		evt.VenueAddress = cleanText(n.Venue.Address)
	}
	if len(n.Images) > 0 {
		evt.ImageURL = n.Images[0].BaseURL
	}
	return evt, true
}

func (s *Meetup) fromCard(card *goquery.Selection) (*event.Event, bool) {
	title := cardTitle(card)
	link := absoluteURL(meetupOrigin, cardLink(card))
	if title == "" || link == "" {
		return nil, false
	}

	dateString := cleanText(card.Find(`time, [class*="date"], [class*="time"]`).First().Text())
	venue := cleanText(card.Find(`[class*="location"], [class*="venue"], [class*="address"]`).First().Text())

	return &event.Event{
		SourceName: meetupName,
		SourceURL:  link,
		Title:      title,
		DateTime:   event.ParseDate(dateString),
		DateString: dateString,
		VenueName:  venue,
		City:       s.opts.City,
		ImageURL:   imageURL(card),
	}, true
}
