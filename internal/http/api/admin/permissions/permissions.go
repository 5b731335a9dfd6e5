// Package permissions lists the admin routes and the route keys a scoped admin token may carry.
package permissions

import (
	"sort"
	"strings"
)

// Definition describes one permission-protected admin route.
type Definition struct {
	Key    string // "METHOD /full/path", as produced by Key.
	Method string
	Path   string
	Module string // Grouping used when listing permissions.
	Label  string
}

const adminPrefix = "/v0/admin"

var definitions = []Definition{
	define("GET", "/wallets/:account_id", "wallets", "View wallet"),
	define("GET", "/wallets/:account_id/transactions", "wallets", "List wallet transactions"),
	define("GET", "/wallets/:account_id/redemptions", "wallets", "List wallet redemptions"),
	define("GET", "/wallets/:account_id/activity", "wallets", "List wallet activity"),
	define("GET", "/wallets/:account_id/reconcile", "wallets", "Reconcile wallet"),
	define("POST", "/wallets/:account_id/earn", "wallets", "Credit coins"),
	define("POST", "/transactions/:id/reverse", "transactions", "Reverse transaction"),
	define("GET", "/rewards", "rewards", "List rewards"),
	define("POST", "/rewards", "rewards", "Create reward"),
	define("POST", "/rewards/:id/vouchers", "rewards", "Add vouchers"),
	define("PUT", "/rewards/:id/active", "rewards", "Enable or disable reward"),
	define("GET", "/audit", "audit", "View audit trail"),
	define("GET", "/audit/verify", "audit", "Verify audit chain"),
	define("GET", "/settings", "settings", "View settings"),
	define("PUT", "/settings/:key", "settings", "Update setting"),
	define("POST", "/idempotency/purge", "maintenance", "Purge idempotency keys"),
	define("GET", "/permissions", "permissions", "List permissions"),
}

func define(method, path, module, label string) Definition {
	full := adminPrefix + path
	return Definition{Key: Key(method, full), Method: method, Path: full, Module: module, Label: label}
}

// Key builds the permission key for a route.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

// Definitions returns every admin permission, sorted by key.
func Definitions() []Definition {
	out := append([]Definition(nil), definitions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DefinitionMap indexes Definitions by key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}

// HasPermission reports whether granted allows key. An empty grant allows every route.
func HasPermission(granted []string, key string) bool {
	if len(granted) == 0 {
		return true
	}
	for _, g := range granted {
		if strings.TrimSpace(g) == key {
			return true
		}
	}
	return false
}
