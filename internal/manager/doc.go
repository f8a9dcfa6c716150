// Package manager runs the house manager: read passes over the unread mail
// of the configured mailbox, either once or on a cron schedule, followed by
// an HTML report of what was handled.
//
// The schedule comes from the [Manager] section of the configuration file:
//
//	[Manager]
//	schedule = @every 15m
//	report_to = owner@example.com
//	report_subject = House manager report
//
// schedule accepts standard five-field cron expressions as well as the
// descriptors understood by github.com/robfig/cron/v3 (@hourly, @every 1h30m).
// An empty schedule runs a single pass.
package manager
