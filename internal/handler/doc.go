// Package handler implements the email handler: it reads the configuration,
// sets up credentials and the Gmail client, prints unread messages and sends
// messages with an optional attachment.
package handler
