package geo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var appleDevicePattern = regexp.MustCompile(`iPhone|iPad|iPod`)

// NavigationLinks holds deep links that open turn-by-turn navigation to a
// destination in the common map apps.
type NavigationLinks struct {
	Google string `json:"google_maps"`
	Apple  string `json:"apple_maps"`
}

// BuildNavigationLinks returns driving directions links to dest. label is
// optional and only used by Apple Maps.
func BuildNavigationLinks(dest Coordinates, label string) NavigationLinks {
	google := fmt.Sprintf(
		"https://www.google.com/maps/dir/?api=1&destination=%v,%v&travelmode=driving",
		dest.Lat, dest.Lng,
	)

	apple := fmt.Sprintf("http://maps.apple.com/?daddr=%v,%v&dirflg=d", dest.Lat, dest.Lng)
	if label != "" {
		apple += "&daddr_name=" + strings.ReplaceAll(url.QueryEscape(label), "+", "%20")
	}

	return NavigationLinks{Google: google, Apple: apple}
}

// URLFor picks the link that suits the device identified by userAgent.
func (l NavigationLinks) URLFor(userAgent string) string {
	if appleDevicePattern.MatchString(userAgent) {
		return l.Apple
	}
	return l.Google
}
