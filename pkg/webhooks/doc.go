// Package webhooks forwards audit events to outbound HTTP endpoints.
//
// # Overview
//
// A Notifier implements audit.Logger, so it can sit in an audit.MultiLogger
// next to the database trail. Log never blocks the caller: matching events
// are queued and a small pool of workers delivers them with exponential
// backoff. Client errors (4xx other than 429) are not retried.
//
// # Payload formats
//
// json posts the audit event as is. slack and teams post a message card
// built from the event type, organization, subject and status transition.
//
// # Signatures
//
// When an endpoint has a secret each request carries
//
//	X-League-Signature: sha256=<hex HMAC-SHA256 of the body>
//
// along with X-League-Event (the event type) and X-League-Delivery (the
// event id).
//
// # Usage
//
//	notifier := webhooks.NewNotifier(webhooks.Config{
//		Endpoints: []webhooks.Endpoint{{
//			URL:    "https://hooks.slack.com/services/...",
//			Format: webhooks.FormatSlack,
//			Events: []audit.EventType{audit.EventMembershipJoinRequested},
//		}},
//	}, logger)
//	defer notifier.Close()
//
//	auditLog := audit.NewMultiLogger(dbLogger, notifier)
package webhooks
