// Package alerts implements the rule evaluation engine and webhook delivery
// for waterworm alerting. Rules are evaluated against source snapshots each
// time a progress log is re-analyzed; webhooks are delivered to Teams, Slack,
// or generic HTTP targets when an alert fires and again when it resolves.
package alerts
