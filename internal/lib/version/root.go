package version

// VERSION is set at build time with
// -ldflags "-X github.com/midweste/wp-git-plugin-repository/internal/lib/version.VERSION=..."
var VERSION = "dev"
