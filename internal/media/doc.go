// Package media resolves job sources into recognizable audio: it validates
// origin video URLs, downloads their audio streams, and promotes local files
// into object storage.
package media
