// Package cli implements the themeforge command-line tool.
//
// # Commands
//
// build: compile or stage themes and print their dependency records as JSON
//
//	themeforge build --theme flatly@5 --theme ./brand.yaml
//	themeforge build -t 4 --source-map
//
// Arguments naming an existing .yaml, .yml, .json or .jsonc file are loaded
// as theme files; anything else is a theme spec.
//
// serve: run the HTTP API (see package api) plus a probe and metrics server
// on THEMEFORGE_HEALTH_PORT
//
//	themeforge serve --port 8080 --watch ./brand.yaml
//
// With --watch, edits to the theme file are pushed to every live session.
// Store pruning runs on THEMEFORGE_PRUNE_SCHEDULE when enabled.
//
// prune: remove store entries older than a maximum age
//
//	themeforge prune --max-age 72h
//
// themes: list framework versions and their bundled presets
//
// Every command reads its configuration from the environment (see package
// config); flags override individual settings.
package cli
