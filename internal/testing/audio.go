package testing

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/desertthunder/libsync/internal/models"
)

// WriteTaggedMP3 writes a minimal file at path carrying an ID3v2.3 tag with the given fields,
// followed by a few bytes standing in for audio frames.
func WriteTaggedMP3(t *testing.T, path string, tags models.Tags) {
	t.Helper()

	var frames bytes.Buffer
	for _, f := range []struct{ id, value string }{
		{"TIT2", tags.Title},
		{"TPE1", tags.Artist},
		{"TPE2", tags.AlbumArtist},
		{"TALB", tags.Album},
	} {
		if f.value == "" {
			continue
		}
		frames.WriteString(f.id)
		binary.Write(&frames, binary.BigEndian, uint32(len(f.value)+1))
		frames.Write([]byte{0, 0}) // flags
		frames.WriteByte(0)        // ISO-8859-1
		frames.WriteString(f.value)
	}

	var buf bytes.Buffer
	buf.WriteString("ID3")
	buf.Write([]byte{3, 0, 0})
	buf.Write(syncsafe(frames.Len()))
	buf.Write(frames.Bytes())
	buf.Write([]byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x00, 0x00, 0x00})

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write tagged file %s: %v", path, err)
	}
}

func syncsafe(n int) []byte {
	return []byte{
		byte(n>>21) & 0x7F,
		byte(n>>14) & 0x7F,
		byte(n>>7) & 0x7F,
		byte(n) & 0x7F,
	}
}
