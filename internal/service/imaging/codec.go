package imaging

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrDecode is returned when the input bytes are not a supported image.
	ErrDecode = errors.New("cannot decode image")
	// ErrEncode is returned when the result cannot be written as JPEG.
	ErrEncode = errors.New("cannot encode image")
)

// Decode reads JPEG, PNG, BMP or WebP bytes into a 3-channel BGR Mat.
// Alpha is dropped and grayscale inputs get three equal channels. The EXIF
// orientation tag is ignored, so pixels keep their stored layout.
// The caller owns the returned Mat.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty input", ErrDecode)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor|gocv.IMReadIgnoreOrientation)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("%w: unsupported or corrupt data", ErrDecode)
	}
	return mat, nil
}

// Encode writes mat as a JPEG at the given quality (1..100).
func Encode(mat gocv.Mat, quality int) ([]byte, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrEncode)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
