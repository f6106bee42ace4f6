// Package filter hosts the pre-typing reject plug-ins: fast per-request
// checks that short-circuit the pipeline before the cost of typing,
// extraction, and model scoring is paid. See spec §4.3.
package filter

import "github.com/cc-sentinel/sentinel/internal/message"

// Plugin is the filter plug-in contract of spec §4.3. Plugins run in
// registration order; the first to return reject=true short-circuits
// the pipeline.
type Plugin interface {
	FilterRequest(msg *message.HTTP) (reject bool, reason string, source string)
}
