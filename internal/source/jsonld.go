package source

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ldNode is a tolerant view of a schema.org node. Listing sites embed
// these inconsistently (single object, array, polymorphic fields), so
// anything shape-shifting stays a RawMessage until needed.
type ldNode struct {
	Type            string          `json:"@type"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	StartDate       string          `json:"startDate"`
	Description     string          `json:"description"`
	Image           json.RawMessage `json:"image"`
	Location        json.RawMessage `json:"location"`
	ItemListElement []ldListItem    `json:"itemListElement"`
}

type ldListItem struct {
	Type string `json:"@type"`
	Item ldNode `json:"item"`
}

type ldPlace struct {
	Name    string          `json:"name"`
	Address json.RawMessage `json:"address"`
}

type ldPostalAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	PostalCode      string `json:"postalCode"`
}

// eachJSONLD decodes every ld+json script in the document and calls fn for
// each top-level node. Scripts that fail to decode are reported through
// onErr and skipped.
func eachJSONLD(doc *goquery.Document, fn func(ldNode), onErr func(detail string)) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var node ldNode
		if err := json.Unmarshal([]byte(raw), &node); err == nil {
			fn(node)
			return
		}

		var nodes []ldNode
		if err := json.Unmarshal([]byte(raw), &nodes); err == nil {
			for _, n := range nodes {
				fn(n)
			}
			return
		}

		onErr("undecodable ld+json block")
	})
}

// imageRef flattens the polymorphic image field (string, [string], or
// ImageObject) to a single URL.
func (n ldNode) imageRef() string {
	return flattenImage(n.Image)
}

func flattenImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return flattenImage(list[0])
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

// place flattens the location field to a venue name and address. Location
// may be an object or a list; address may be a string or PostalAddress.
func (n ldNode) place() (name, address string) {
	raw := n.Location
	if len(raw) == 0 {
		return "", ""
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", ""
		}
		raw = list[0]
	}

	var p ldPlace
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", ""
	}

	if len(p.Address) > 0 {
		var s string
		if err := json.Unmarshal(p.Address, &s); err == nil {
			return p.Name, s
		}
		var pa ldPostalAddress
		if err := json.Unmarshal(p.Address, &pa); err == nil {
			parts := []string{pa.StreetAddress, pa.AddressLocality, pa.AddressRegion, pa.PostalCode}
			nonEmpty := parts[:0]
			for _, part := range parts {
				if part != "" {
					nonEmpty = append(nonEmpty, part)
				}
			}
			return p.Name, strings.Join(nonEmpty, ", ")
		}
	}
	return p.Name, ""
}
