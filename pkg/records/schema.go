package records

import "strings"

// Separator joins namespace and path segments into composite keys.
const Separator = "::"

// Namespaces owned by steamhub components. Each component owns exactly one;
// language catalogs derive theirs with CatalogNamespace.
const (
	NamespacePermissions = "permissions"
	NamespaceBans        = "global_bans"
	NamespaceCooldowns   = "cooldowns"
	NamespacePremium     = "premium"
	NamespaceLanguages   = "languages"
	NamespaceCatalogs    = "languageshub"
	NamespaceWatcher     = "watcher"
	NamespaceQueries     = "queries"
	NamespacePrefixes    = "prefixes"
	NamespaceCurrencies  = "currencies"
	NamespaceCountries   = "countries"
	NamespaceNames       = "names"
	NamespaceMarks       = "marks"
)

// Namespaces lists every fixed namespace.
var Namespaces = []string{
	NamespacePermissions,
	NamespaceBans,
	NamespaceCooldowns,
	NamespacePremium,
	NamespaceLanguages,
	NamespaceCatalogs,
	NamespaceWatcher,
	NamespaceQueries,
	NamespacePrefixes,
	NamespaceCurrencies,
	NamespaceCountries,
	NamespaceNames,
	NamespaceMarks,
}

// CatalogNamespace returns the namespace holding one language catalog.
// Pattern: languageshub::{name}
func CatalogNamespace(name string) string {
	return NamespaceCatalogs + Separator + name
}

// Path joins field path segments.
// Path("game", "server", "1") = "game::server::1"
func Path(segments ...string) string {
	return strings.Join(segments, Separator)
}

// BroadcastChannel returns the Pub/Sub channel for a namespace topic.
// Pattern: {namespace}::{topic}_events
func BroadcastChannel(namespace, topic string) string {
	return namespace + Separator + topic + "_events"
}

func lengthPath(path string) string {
	return path + Separator + "length"
}
