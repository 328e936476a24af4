package services

import (
	"net/url"
	"time"
)

const googleCalendarTemplateURL = "https://calendar.google.com/calendar/render"

// GoogleCalendarLink builds an "add to calendar" template URL.
func GoogleCalendarLink(title, details, location string, start, end time.Time) string {
	const layout = "20060102T150405Z"
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("dates", start.UTC().Format(layout)+"/"+end.UTC().Format(layout))
	if details != "" {
		q.Set("details", details)
	}
	if location != "" {
		q.Set("location", location)
	}
	return googleCalendarTemplateURL + "?" + q.Encode()
}
