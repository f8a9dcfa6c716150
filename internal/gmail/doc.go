// Package gmail talks to the Gmail REST API on behalf of housemgr.
//
// Client lists unread messages, fetches them in raw form, removes the UNREAD
// label and sends messages. Fetched messages are decoded with enmime into a
// Message; outgoing messages are composed by BuildMessage as
// multipart/alternative (plain and HTML), wrapped in multipart/mixed when a
// single file is attached.
//
// Each API request is rate limited and recorded as a google.gmail.<operation>
// span and in the google_api_operations_total metric. Errors are returned
// wrapped and never retried.
package gmail
