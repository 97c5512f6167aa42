package server

import (
	"strings"
)

/*
paths that vulnerability scanners probe for. We never serve them from
web root even if such files exist there (e.g. when the store file or
.env is placed next to the html files).
*/

var (
	badClientsContains = []string{
		"/wp-login.php",
		"/xmlrpc.php",
		"/wp-admin",
		"/wp-content/",
		".env",
		".git/",
		"id_rsa",
		"id_dsa",
		"/etc/passwd",
	}
	badClientSuffix = []string{
		".bak",
		".sql",
		".key",
		".pem",
		".sqlite",
		".db",
		".zst",
		".corrupt",
	}
)

// isBadClientPath returns true if we should pretend path doesn't exist
func isBadClientPath(uri string) bool {
	uri = strings.ToLower(uri)
	for _, s := range badClientSuffix {
		if strings.HasSuffix(uri, s) {
			return true
		}
	}
	for _, s := range badClientsContains {
		if strings.Contains(uri, s) {
			return true
		}
	}
	return false
}
