// Package library files imported audio into the canonical library layout.
//
// Tracks land at root/artist/album/basename where artist and album come from
// [attribution.Resolver]. The package also owns the surrounding filesystem chores:
// listing the import directory, reading tags, checking the library is writable
// before a batch, and purging imported sources once they are on the playlist.
package library
