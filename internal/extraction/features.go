package extraction

import "github.com/cc-sentinel/sentinel/internal/message"

// ngramSizes are the three n-gram lengths the spec names: monograms,
// bigrams, hexagrams.
var ngramSizes = []int{1, 2, 6}

func ngramSuffix(n int) string {
	switch n {
	case 1:
		return "1grams"
	case 2:
		return "2grams"
	case 6:
		return "6grams"
	default:
		return ""
	}
}

// charClasses tallies lowercase/uppercase/numeric/whitespace/special
// characters over s by ASCII ranges, per spec §4.5.1.
func charClasses(s string) map[string]int {
	tally := map[string]int{"lowercase": 0, "uppercase": 0, "numeric": 0, "whitespace": 0, "special": 0}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			tally["lowercase"]++
		case r >= 'A' && r <= 'Z':
			tally["uppercase"]++
		case r >= '0' && r <= '9':
			tally["numeric"]++
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			tally["whitespace"]++
		default:
			tally["special"]++
		}
	}
	return tally
}

// BasicFeatures computes the metadata features of spec §4.5.1 that apply
// to every request regardless of query/body presence.
func BasicFeatures(m *message.HTTP) map[string]any {
	features := map[string]any{
		"source_addr": m.SourceAddr,
		"method":      m.Method,
		"path":        m.Path,
		"proto":       m.Proto,
		"length":      m.Length(),
	}
	for k, vs := range m.Header {
		if len(vs) > 0 {
			features["header_"+k] = vs[0]
		}
	}
	features["header_count"] = len(m.Header)
	return features
}

// QueryFeatures computes the query-side features of spec §4.5.1, valid
// only when m.HasQuery is true.
func QueryFeatures(m *message.HTTP) map[string]any {
	features := map[string]any{
		"query":             m.Query,
		"query_field_count": len(splitAmp(m.Query)),
	}
	for k, v := range charClasses(m.Query) {
		features["query_"+k] = v
	}
	return features
}

// BodyFeatures computes the body-side character-class tallies of
// spec §4.5.1, valid only when m.HasBody is true.
func BodyFeatures(m *message.HTTP) map[string]any {
	features := map[string]any{}
	for k, v := range charClasses(string(m.Body)) {
		features["body_"+k] = v
	}
	return features
}

func splitAmp(s string) []string {
	if s == "" {
		return nil
	}
	fields := []string{""}
	for _, r := range s {
		if r == '&' {
			fields = append(fields, "")
			continue
		}
		fields[len(fields)-1] += string(r)
	}
	return fields
}
