package lexical

// DefaultSynonyms is a bounded synonym and abbreviation table used for
// query expansion. Values map user vocabulary to corpus vocabulary; only
// the first MaxSynonymsPerTerm entries of each list are appended.
var DefaultSynonyms = map[string][]string{
	// Abbreviations.
	"db":     {"database", "datastore"},
	"config": {"configuration", "settings"},
	"auth":   {"authentication", "authorization"},
	"docs":   {"documentation", "document"},
	"doc":    {"document", "documentation"},
	"repo":   {"repository", "project"},
	"api":    {"endpoint", "interface"},
	"app":    {"application", "service"},
	"env":    {"environment", "configuration"},
	"info":   {"information", "details"},
	"spec":   {"specification", "requirements"},
	"stats":  {"statistics", "metrics"},

	// General English.
	"error":    {"failure", "fault"},
	"fix":      {"repair", "resolve"},
	"delete":   {"remove", "erase"},
	"create":   {"build", "generate"},
	"start":    {"begin", "launch"},
	"stop":     {"halt", "terminate"},
	"change":   {"modify", "update"},
	"fast":     {"quick", "rapid"},
	"big":      {"large", "huge"},
	"small":    {"tiny", "little"},
	"method":   {"function", "procedure"},
	"problem":  {"issue", "bug"},
	"result":   {"outcome", "output"},
	"search":   {"query", "lookup"},
	"setup":    {"installation", "configuration"},
	"user":     {"account", "customer"},
	"cost":     {"price", "expense"},
	"report":   {"summary", "analysis"},
	"test":     {"verify", "validate"},
	"install":  {"setup", "deploy"},
	"performance": {"speed", "throughput"},
}

// expandQuery appends up to MaxSynonymsPerTerm synonyms for each query
// word recognized in the table. Original terms always come first; appended
// synonyms are deduplicated against terms already present.
func expandQuery(words []string, table map[string][]string) []string {
	if len(table) == 0 {
		return words
	}

	seen := make(map[string]struct{}, len(words)*2)
	expanded := make([]string, 0, len(words)*2)
	for _, w := range words {
		if _, dup := seen[w]; !dup {
			seen[w] = struct{}{}
			expanded = append(expanded, w)
		}
	}

	for _, w := range words {
		synonyms, ok := table[w]
		if !ok {
			continue
		}
		added := 0
		for _, s := range synonyms {
			if added >= MaxSynonymsPerTerm {
				break
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			expanded = append(expanded, s)
			added++
		}
	}

	return expanded
}
