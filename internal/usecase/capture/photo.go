package capture

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
)

// encodePhoto scales frame down to fit maxDimension and encodes it as JPEG.
func encodePhoto(frame image.Image, maxDimension int, quality int, capturedAt time.Time) (attendance.PhotoRef, error) {
	if frame == nil {
		return attendance.PhotoRef{}, errors.New("camera returned an empty frame")
	}
	bounds := frame.Bounds()
	if bounds.Empty() {
		return attendance.PhotoRef{}, errors.New("camera returned an empty frame")
	}

	img := frame
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		img = imaging.Fit(frame, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return attendance.PhotoRef{}, errs.Wrap(err, "encode photo")
	}

	sum := sha256.Sum256(buf.Bytes())
	size := img.Bounds().Size()
	return attendance.PhotoRef{
		ID:          uuid.NewString(),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
		Width:       size.X,
		Height:      size.Y,
		Digest:      hex.EncodeToString(sum[:]),
		CapturedAt:  capturedAt,
	}, nil
}
