package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const (
	DefaultAvatarSize = 512
	avatarJPEGQuality = 85
)

// ResizeAvatar centre-crops an image to a size×size square and re-encodes it
// as JPEG.
func ResizeAvatar(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultAvatarSize
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(avatarJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
