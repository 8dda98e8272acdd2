// Package services defines the [MediaServer] interface for self-hosted media servers and implements it
// for Jellyfin and the Subsonic API (Airsonic, Navidrome, Gonic).
//
// # MediaServer Interface
//
// A media server is a [Catalog] (search, path lookup, library rescans) and a [PlaylistStore]
// (find, create, read and append to playlists). Reconciliation only ever appends to playlists;
// neither implementation exposes a replace operation.
//
// # Jellyfin Implementation
//
// [JellyfinService] authenticates with Users/AuthenticateByName and sends the returned access token
// on every later request through an [oauth2.Transport] using the MediaBrowser authorization scheme.
// Search hints carry no file paths, so [JellyfinService.ResolvePath] reads them from PlaybackInfo.
// Rescans run as the RefreshLibrary scheduled task.
//
// # Subsonic Implementation
//
// [SubsonicService] signs each request with the salted token scheme (t = md5(password + salt)).
// search3 results include paths. Playlists grow through updatePlaylist with songIdToAdd.
//
// # Error Handling
//
// Transport failures, non-2xx statuses, Subsonic "failed" envelopes and undecodable bodies all wrap
// [shared.ErrServiceUnavailable]. Rejected credentials additionally wrap [shared.ErrAuthFailed].
//
// All requests share a [rate.Limiter] so large batches do not flood the server.
package services
