package uploads

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/storefront/pkg/testutil"
)

var pngHeader = testutil.PNG()

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"My cool movie.mov":          "My_cool_movie.mov",
		"../../../etc/passwd":        "etc_passwd",
		"i contain cool ümläuts.txt": "i_contain_cool_umlauts.txt",
		`C:\Users\x\photo.png`:       "C_Users_x_photo.png",
		"Футболка.png":               "png",
		"...":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SecureFilename(in), in)
	}
}

func TestSaveStoresImage(t *testing.T) {
	store, err := New(t.TempDir(), 1024)
	require.NoError(t, err)

	name, err := store.Save("shirt 1.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "shirt_1.png", name)

	data, err := os.ReadFile(filepath.Join(store.Root(), name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	again, err := store.Save("shirt 1.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.NotEqual(t, name, again)
	assert.True(t, strings.HasSuffix(again, "_shirt_1.png"))
}

func TestSaveFallsBackToGeneratedName(t *testing.T) {
	store, err := New(t.TempDir(), 1024)
	require.NoError(t, err)

	name, err := store.Save("Футболка", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Len(t, name, len("00000000-0000-0000-0000-000000000000.png"))
}

func TestSaveRejects(t *testing.T) {
	store, err := New(t.TempDir(), 32)
	require.NoError(t, err)

	_, err = store.Save("a.txt", strings.NewReader("plain text content"))
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	_, err = store.Save("a.png", bytes.NewReader(append(pngHeader, make([]byte, 64)...)))
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = store.Save("a.png", bytes.NewReader(nil))
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestHandlerServesFilesButNotDirectories(t *testing.T) {
	store, err := New(t.TempDir(), 1024)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), "tshirts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "tshirts", "t1.png"), pngHeader, 0o644))

	h := http.StripPrefix("/uploads/", store.Handler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/tshirts/t1.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/tshirts/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemove(t *testing.T) {
	store, err := New(t.TempDir(), 1024)
	require.NoError(t, err)
	name, err := store.Save("x.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.NoError(t, store.Remove(name))
	_, err = os.Stat(filepath.Join(store.Root(), name))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Remove(name))
}
