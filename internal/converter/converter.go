// Package converter decodes JPEG and PNG images and re-encodes them as WebP,
// AVIF, JPEG or PNG.
package converter

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"

	"github.com/drhuang0922/ngic/internal/logging"
)

const (
	// DefaultQuality is used for lossy formats when none is given.
	DefaultQuality = 85
	// DefaultSpeed is the AVIF encoder speed (0 slowest, 10 fastest).
	DefaultSpeed = 6

	webpMethod = 4
)

// ImageConverter handles image format conversion.
type ImageConverter struct {
	Quality  int  // Quality for lossy formats (1-100)
	Lossless bool // Lossless WebP output
	Speed    int  // AVIF encoder speed (0-10)
}

// NewImageConverter creates a new converter with default quality.
func NewImageConverter() *ImageConverter {
	return &ImageConverter{
		Quality: DefaultQuality,
		Speed:   DefaultSpeed,
	}
}

// SetQuality sets the quality for lossy format conversion, clamped to 1-100.
func (ic *ImageConverter) SetQuality(quality int) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	ic.Quality = quality
}

// SetSpeed sets the AVIF encoder speed, clamped to 0-10.
func (ic *ImageConverter) SetSpeed(speed int) {
	if speed < 0 {
		speed = 0
	}
	if speed > 10 {
		speed = 10
	}
	ic.Speed = speed
}

// ConvertImage converts the image at inputPath to targetFormat and writes it
// to outputPath. The output appears only once fully encoded; a failed
// conversion never leaves a partial file behind. The Result is non-nil even
// on error so failures can be recorded.
func (ic *ImageConverter) ConvertImage(inputPath, outputPath, targetFormat string) (*Result, error) {
	start := time.Now()
	log := logging.Logger()

	res := &Result{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Quality:    ic.Quality,
	}

	format, err := ParseFormat(targetFormat)
	if err != nil {
		return res, err
	}
	res.TargetFormat = format

	inputFile, err := os.Open(inputPath)
	if err != nil {
		return res, fmt.Errorf("failed to open input file: %w", err)
	}
	defer inputFile.Close()

	if info, err := inputFile.Stat(); err == nil {
		res.InputBytes = info.Size()
	}

	img, sourceFormat, err := image.Decode(inputFile)
	if err != nil {
		return res, fmt.Errorf("failed to decode image: %w", err)
	}
	res.SourceFormat = sourceFormat
	log.Debugf("decoded %s (%s, %dx%d)", inputPath, sourceFormat, img.Bounds().Dx(), img.Bounds().Dy())

	size, err := ic.writeAtomic(outputPath, img, format)
	if err != nil {
		return res, err
	}
	res.OutputBytes = size
	res.Duration = time.Since(start)

	log.Infof("converted %s -> %s (%s, q=%d, %d -> %d bytes, %s)",
		inputPath, outputPath, format, ic.Quality, res.InputBytes, res.OutputBytes, res.Duration.Round(time.Millisecond))
	return res, nil
}

// writeAtomic encodes img into a temp file next to outputPath and renames it
// into place. Returns the encoded size.
func (ic *ImageConverter) writeAtomic(outputPath string, img image.Image, format Format) (int64, error) {
	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, ".ngic-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := ic.Encode(tmp, img, format); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to encode %s: %w", format, err)
	}

	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to stat output file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write output file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to set output permissions: %w", err)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to move output into place: %w", err)
	}

	return info.Size(), nil
}

// Encode writes img to w in the given format using the converter's settings.
func (ic *ImageConverter) Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case WebP:
		return webp.Encode(w, img, webp.Options{
			Quality:  ic.Quality,
			Lossless: ic.Lossless,
			Method:   webpMethod,
		})
	case AVIF:
		return avif.Encode(w, img, avif.Options{
			Quality:      ic.Quality,
			QualityAlpha: ic.Quality,
			Speed:        ic.Speed,
		})
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: ic.Quality})
	case PNG:
		return png.Encode(w, img)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// GetImageInfo returns basic information about an image file without
// decoding its pixels.
func GetImageInfo(imagePath string) (width, height int, format string, err error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return 0, 0, "", err
	}
	defer file.Close()

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, "", err
	}

	return config.Width, config.Height, format, nil
}
