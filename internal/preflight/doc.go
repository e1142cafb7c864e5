// Package preflight verifies the environment before the daemon starts: the
// cache and log directories are writable, the cache volume has headroom, the
// music daemon is reachable, and configured providers have the credentials
// they need. Checks report results instead of failing fast so the CLI can
// show everything wrong at once.
package preflight
