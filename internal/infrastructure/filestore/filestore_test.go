package filestore

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-ticket-booking/internal/config"
)

func newTestStore(t *testing.T) *ImageStore {
	t.Helper()
	store, err := NewImageStore(&config.UploadConfig{
		Dir:          t.TempDir(),
		BaseURL:      "/uploads",
		MaxImage:     5 << 20,
		MaxDimension: 200,
	})
	require.NoError(t, err)
	return store
}

func pngBytes(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestImageStore_Save(t *testing.T) {
	store := newTestStore(t)

	url, err := store.Save("poster.png", pngBytes(t, 100, 80))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	// 返されたURLに対応するファイルが存在する
	name := filepath.Base(url)
	_, statErr := os.Stat(filepath.Join(store.Dir(), name))
	assert.NoError(t, statErr)
}

func TestImageStore_Save_ResizesLargeImage(t *testing.T) {
	store := newTestStore(t)

	url, err := store.Save("big.png", pngBytes(t, 800, 400))
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(store.Dir(), filepath.Base(url)))
	require.NoError(t, err)
	// 最大辺200に縦横比を保って縮小される
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestImageStore_Save_RejectsOversizedImage(t *testing.T) {
	store, err := NewImageStore(&config.UploadConfig{
		Dir:          t.TempDir(),
		BaseURL:      "/uploads",
		MaxImage:     256, // バイト
		MaxDimension: 200,
	})
	require.NoError(t, err)

	_, err = store.Save("huge.png", pngBytes(t, 500, 500))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestImageStore_Save_RejectsUnsupportedExt(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("malware.exe", bytes.NewBufferString("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImageStore_Save_RejectsNonImageData(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("fake.png", bytes.NewBufferString("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImageStore_Delete(t *testing.T) {
	store := newTestStore(t)

	url, err := store.Save("poster.png", pngBytes(t, 10, 10))
	require.NoError(t, err)

	require.NoError(t, store.Delete(url))
	_, statErr := os.Stat(filepath.Join(store.Dir(), filepath.Base(url)))
	assert.True(t, os.IsNotExist(statErr))

	// ストア外のURLや空URLは無視する
	assert.NoError(t, store.Delete("https://example.com/external.png"))
	assert.NoError(t, store.Delete(""))
	// 既に存在しないファイルの削除もエラーにならない
	assert.NoError(t, store.Delete(url))
}
