/*
Package file provides a settings backend kept in a single JSON, YAML or TOML
file. The format follows the file extension.

Values are held in memory and written to disk either after every change
(Options.AutoSave) or when Save is called. Writes go to a temporary file
that is renamed over the target, so a crash never leaves a half written
file behind.

Files are written flat, one entry per sanitized key:

	app.theme: dark
	app.volume: 7

Hand written files may also nest keys by category; nested tables are
flattened with the configured delimiter on load:

	[app]
	theme = "dark"

Map values are therefore flattened as well and come back as individual keys.
*/
package file
