// Package message holds the HTTP message value type and the request "type"
// descriptor that every pipeline stage and per-type subsystem keys off of.
package message

import (
	"fmt"
	"strings"
)

// HTTP is an immutable snapshot of a request, built once by acquisition and
// never mutated by downstream stages.
type HTTP struct {
	SourceAddr string
	Method     string
	Path       string
	Query      string
	Proto      string
	Header     map[string][]string
	Body       []byte

	HasQuery bool
	HasBody  bool
}

// New builds an HTTP message, deriving HasQuery/HasBody from query/body.
func New(sourceAddr, method, path, query, proto string, header map[string][]string, body []byte) *HTTP {
	return &HTTP{
		SourceAddr: sourceAddr,
		Method:     method,
		Path:       path,
		Query:      query,
		Proto:      proto,
		Header:     header,
		Body:       body,
		HasQuery:   len(query) > 0,
		HasBody:    len(body) > 0,
	}
}

// Length is the octet count of the method-line, headers and body.
func (m *HTTP) Length() int {
	n := len(m.Method) + 1 + len(m.Path)
	if m.HasQuery {
		n += 1 + len(m.Query)
	}
	n += 1 + len(m.Proto)
	for k, vs := range m.Header {
		for _, v := range vs {
			n += len(k) + len(v) + 4
		}
	}
	n += len(m.Body)
	return n
}

// Type is the tuple (method, path, has_query, has_body) used as the map key
// for every per-type subsystem: n-gram pools and trained models.
type Type struct {
	Method   string
	Path     string
	HasQuery bool
	HasBody  bool
}

// TypeOf derives the Type descriptor of a message.
func TypeOf(m *HTTP) Type {
	return Type{
		Method:   m.Method,
		Path:     m.Path,
		HasQuery: m.HasQuery,
		HasBody:  m.HasBody,
	}
}

// String renders a stable, lexicographically-orderable key, used both for
// map iteration determinism in tests and as the sqlite namespace sub-key.
func (t Type) String() string {
	return fmt.Sprintf("%s|%s|%v|%v", t.Method, t.Path, t.HasQuery, t.HasBody)
}

// Less orders types lexicographically by method, then path, then flags —
// the total order required by spec §3.
func (t Type) Less(o Type) bool {
	if t.Method != o.Method {
		return t.Method < o.Method
	}
	if t.Path != o.Path {
		return t.Path < o.Path
	}
	if t.HasQuery != o.HasQuery {
		return !t.HasQuery
	}
	return !t.HasBody && o.HasBody
}

// SplitPath splits an absolute path into its non-empty components. A
// leading "/" produces an empty first component that is dropped; the empty
// path ("/" itself) yields no components, meaning "resolves to a resource
// named /" at the call site.
func SplitPath(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
