// Package ui provides semantic text formatting for sealkeeper output.
//
// Formatters colorize by meaning rather than by color name:
//
//	ui.Code.Sprint("sealkeeper key setup")        // Commands
//	ui.Path.Sprint("s3://bucket/key.json")        // Paths and URIs
//	ui.SecretID.Sprint("sealed-secrets/master-key") // Secrets Manager IDs
//	ui.Version.Sprint("rotated-20261019-101500")  // Version tags
//	ui.Success.Sprint("✓")
//	ui.Error.Sprint("✗")
//	ui.Info.Sprint("→")
//
// When NO_COLOR is set or the terminal lacks color support, formatters fall
// back to plain decorations (backticks, quotes, brackets) so that meaning
// survives without color.
package ui
