// Package playlist reads and writes playlist files so catalog playlists can
// be handed to review tools and brought back.
//
// The supported format is WPL, the XML playlist of Windows Media Player,
// which most review players on both Windows and Linux accept. Exported
// files reference each element's authoritative path; frame sequences keep
// their '#' pattern.
//
// On import, sources may be UNC paths (\\server\share\shot.mov), drive
// letter paths (C:\plates\bg.exr) or paths relative to the playlist file.
// Each item carries the element name derived from its file name, which the
// caller uses to find the matching catalog element.
package playlist
