package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilenameIsDeterministic(t *testing.T) {
	first := Filename("爱", KindWord)
	second := Filename("爱", KindWord)
	require.Equal(t, first, second)
}

func TestFilenameVariesByKindAndWord(t *testing.T) {
	names := map[string]bool{
		Filename("爱", KindWord):     true,
		Filename("爱", KindSentence): true,
		Filename("爱", KindImage):    true,
		Filename("国", KindWord):     true,
	}
	require.Len(t, names, 4)
}

func TestFilenameShape(t *testing.T) {
	name := Filename("爱", KindWord)
	require.True(t, strings.HasPrefix(name, "gen_"))
	require.True(t, strings.HasSuffix(name, ".mp3"))
	// gen_ + 12 hex chars + .mp3
	require.Len(t, name, 4+12+4)

	require.True(t, strings.HasSuffix(Filename("爱", KindSentence), ".mp3"))
	require.True(t, strings.HasSuffix(Filename("爱", KindImage), ".jpg"))
}

func TestStoreWriteAndExists(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "media"))
	name := Filename("爱", KindWord)

	require.False(t, store.Exists(name))
	require.NoError(t, store.Write(name, []byte("audio")))
	require.True(t, store.Exists(name))

	data, err := os.ReadFile(store.Path(name))
	require.NoError(t, err)
	require.Equal(t, []byte("audio"), data)
}

func TestStoreOverwriteReplacesContent(t *testing.T) {
	store := NewStore(t.TempDir())
	name := Filename("国", KindSentence)

	require.NoError(t, store.Write(name, []byte("first")))
	require.NoError(t, store.Write(name, []byte("second")))

	data, err := os.ReadFile(store.Path(name))
	require.NoError(t, err)
	require.Equal(t, []byte("second"), data)

	// no temp files left behind
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
