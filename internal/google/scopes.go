package google

import calendar "google.golang.org/api/calendar/v3"

// DefaultOAuthScopes are the scopes requested at sign-in: read and write
// access to the user's calendars.
var DefaultOAuthScopes = []string{
	calendar.CalendarScope,
}
