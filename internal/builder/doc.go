// Package builder compiles the terminal component and packages the result.
//
// CommandDriver runs the configured build steps inside
// <base>/<component>/_build, installing into <base>/install, then archives the
// install tree into <base>/artifacts together with a SHA-256 checksum file.
package builder
