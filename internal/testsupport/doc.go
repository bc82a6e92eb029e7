// Package testsupport provides helpers for constructing isolated test
// configurations, stub binaries on PATH, and fixture files.
package testsupport
