package models

// Destination identifies one external publishing target.
type Destination string

const (
	DestinationTwitter   Destination = "twitter"
	DestinationFacebook  Destination = "facebook"
	DestinationInstagram Destination = "instagram"
	DestinationYouTube   Destination = "youtube"
	DestinationLinkedIn  Destination = "linkedin"
	DestinationTikTok    Destination = "tiktok"
	DestinationWebsite   Destination = "website"
)

// AllDestinations lists every supported destination in display order.
var AllDestinations = []Destination{
	DestinationFacebook,
	DestinationInstagram,
	DestinationTwitter,
	DestinationLinkedIn,
	DestinationYouTube,
	DestinationTikTok,
	DestinationWebsite,
}

// IsKnown reports whether d is one of the supported destinations.
func (d Destination) IsKnown() bool {
	for _, known := range AllDestinations {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDestinations converts raw identifiers into a destination selection.
// Unknown identifiers and duplicates are dropped; first-seen order is kept.
func ParseDestinations(raw []string) []Destination {
	seen := make(map[Destination]bool, len(raw))
	var out []Destination
	for _, r := range raw {
		d := Destination(r)
		if !d.IsKnown() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
