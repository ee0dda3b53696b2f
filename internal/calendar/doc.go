// Package calendar is a small client for the Google Calendar events API.
//
// It covers what the agent needs: listing upcoming events for context and
// display, and applying insert, patch and delete actions whose event payload
// is passed through as the JSON the agent produced.
//
//	client, err := calendar.NewClientWithToken(ctx, accessToken)
//	if err != nil {
//	    return err
//	}
//	events, err := client.ListUpcoming(ctx, time.Now(), time.Now().AddDate(0, 1, 0))
package calendar
