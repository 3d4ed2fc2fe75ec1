package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/sanosuguru/go-ticket-booking/internal/config"
)

var (
	ErrUnsupportedFormat = errors.New("サポートされていない画像形式です")
	ErrImageTooLarge     = errors.New("画像サイズが上限を超えています")
)

// ImageStore はイベント画像のローカルブロブストア
// 保存した画像の配信URLを返し、永続化するのはURLのみ
type ImageStore struct {
	dir          string
	baseURL      string
	maxBytes     int64
	maxDimension int
}

// NewImageStore は新しいImageStoreを作成する
// 保存先ディレクトリが存在しない場合は作成する
func NewImageStore(cfg *config.UploadConfig) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("アップロードディレクトリの作成に失敗しました: %w", err)
	}
	return &ImageStore{
		dir:          cfg.Dir,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes:     cfg.MaxImage,
		maxDimension: cfg.MaxDimension,
	}, nil
}

// Dir は画像の保存先ディレクトリを返す（静的配信の設定に使う）
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save は画像を検証・リサイズして保存し、配信URLを返す
// 最大辺が maxDimension を超える画像は縦横比を保ったまま縮小される
func (s *ImageStore) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if err := validateExt(ext); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("画像の読み込みに失敗しました: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrImageTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > s.maxDimension || bounds.Dy() > s.maxDimension {
		img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	}

	name := uuid.New().String() + ext
	dst := filepath.Join(s.dir, name)
	if err := imaging.Save(img, dst, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	return s.baseURL + "/" + name, nil
}

// Delete は配信URLに対応する画像を削除する
// URLがこのストアのものでない場合は何もしない
func (s *ImageStore) Delete(imageURL string) error {
	if imageURL == "" || !strings.HasPrefix(imageURL, s.baseURL+"/") {
		return nil
	}
	name := path.Base(imageURL)
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("画像の削除に失敗しました: %w", err)
	}
	return nil
}

func validateExt(ext string) error {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
		return nil
	default:
		return ErrUnsupportedFormat
	}
}
