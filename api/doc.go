// Package api wraps the viewer's scripting pumps behind typed Go methods.
//
// Ownership boundary: pump names and payload shapes for the stock viewer
// APIs, UI path handling, and the cached UI element tree. Connection
// lifecycle, framing, and reply correlation belong to package leap.
package api
