package repositories

import "strings"

// keyEscaper guarantees that ':' only ever appears in composite keys as the
// delimiter. Ids are opaque strings and may themselves contain ':' or '\';
// without escaping, room "a" would be a key prefix of room "a:b" and
// member:a:b:c would be readable as either (a:b, c) or (a, b:c).
var keyEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

func escapeSegment(s string) string { return keyEscaper.Replace(s) }
