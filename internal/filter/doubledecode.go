package filter

import (
	"net/url"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// DoubleDecodeFilter rejects requests whose query or body still decodes
// further once — acquisition already unquoted both once, so a second
// successful decode that changes the value implies the sender
// double-encoded it, a common WAF-evasion technique. See spec §4.3.
type DoubleDecodeFilter struct{}

func (DoubleDecodeFilter) FilterRequest(msg *message.HTTP) (bool, string, string) {
	const source = "Double Encoding Filter Plugin"

	if msg.HasQuery {
		if decoded, err := url.QueryUnescape(msg.Query); err == nil && decoded != msg.Query {
			return true, "Double Encoded Path Query detected", source
		}
	}
	if msg.HasBody {
		if decoded, err := url.QueryUnescape(string(msg.Body)); err == nil && decoded != string(msg.Body) {
			return true, "Double Encoded Body detected", source
		}
	}
	return false, "", ""
}
