// Package deeplink builds outbound links into the external map app.
// Desktop map pages are never a navigation target.
package deeplink

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// FallbackDelayMS is how long the client waits for the app to open before
// switching to the mobile web page.
const FallbackDelayMS = 500

const appScheme = "nmap://place?url="

var (
	androidRE = regexp.MustCompile(`(?i)android`)
	iosRE     = regexp.MustCompile(`(?i)iphone|ipad|ipod`)
)

// mobileHosts maps desktop hosts to their mobile counterparts.
var mobileHosts = map[string]string{
	"map.naver.com":         "m.map.naver.com",
	"place.naver.com":       "m.place.naver.com",
	"pcmap.place.naver.com": "m.place.naver.com",
}

var ErrEmptyURL = errors.New("empty map url")

// Platform is the device family a user agent belongs to.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformOther   Platform = "other"
)

// DetectPlatform classifies a user agent. Anything that is not Android or
// iOS counts as PlatformOther and never gets an app link.
func DetectPlatform(userAgent string) Platform {
	switch {
	case androidRE.MatchString(userAgent):
		return PlatformAndroid
	case iosRE.MatchString(userAgent):
		return PlatformIOS
	default:
		return PlatformOther
	}
}

// Plan tells the client where to navigate. AppURL is empty when the app
// should not be tried.
type Plan struct {
	AppURL          string   `json:"app_url,omitempty"`
	WebURL          string   `json:"web_url"`
	FallbackAfterMS int      `json:"fallback_after_ms,omitempty"`
	Platform        Platform `json:"platform"`
}

// MobileURL rewrites a desktop map link to its mobile host. Links without a
// scheme are read as https. Links already on a mobile host, short links and
// unparseable input are returned unchanged.
func MobileURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err == nil && u.Host == "" && u.Scheme == "" {
		u, err = url.Parse("https://" + trimmed)
	}
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	mobile, ok := mobileHosts[host]
	if !ok {
		return raw
	}
	if port := u.Port(); port != "" {
		mobile += ":" + port
	}
	u.Host = mobile
	return u.String()
}

// NewPlan builds the navigation plan for a store link on the given device.
func NewPlan(raw, userAgent string) (Plan, error) {
	if strings.TrimSpace(raw) == "" {
		return Plan{}, ErrEmptyURL
	}
	web := MobileURL(raw)
	p := Plan{WebURL: web, Platform: DetectPlatform(userAgent)}
	if p.Platform == PlatformOther {
		return p, nil
	}
	p.AppURL = appScheme + url.QueryEscape(web)
	p.FallbackAfterMS = FallbackDelayMS
	return p, nil
}
