package authstore

import "strings"

// providerAliases folds a handful of well-known alternate spellings onto a
// single canonical provider key. The spec leaves normalization externally
// defined; this table is the concrete choice for this repository.
var providerAliases = map[string]string{
	"claude":    "anthropic",
	"claude-ai": "anthropic",
	"gpt":       "openai",
	"chatgpt":   "openai",
	"gemini":    "google",
	"google-ai": "google",
	"vertex":    "google",
	"vertexai":  "google",
}

// NormalizeProvider lowercases and trims provider, then folds known aliases
// onto their canonical spelling. It is the normalize(provider) referenced
// throughout the data model and the cooldown config's per-provider table.
func NormalizeProvider(provider string) string {
	key := strings.ToLower(strings.TrimSpace(provider))
	if canon, ok := providerAliases[key]; ok {
		return canon
	}
	return key
}
