// Package appfs exposes the app's embedded static files:
// goose DB migrations and email templates.
package appfs

import "embed"

// Directory patterns skip underscore-prefixed files, so the shared
// email base layouts must be named explicitly.
//
//go:embed migrations assets
//go:embed assets/templates/email/_base.txt assets/templates/email/_base.gohtml
var FS embed.FS
