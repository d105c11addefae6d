package detector

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Warmup runs a number of forward passes of every stage with blank images
// to reduce first-run latency.
func (d *HandDetector) Warmup(iterations int) error {
	if iterations <= 0 {
		return nil
	}
	if d.closed() {
		return ErrClosed
	}

	img := blankSquare(d.inputSize, DefaultInputSize)
	var palmImg image.Image
	if d.config.twoStage() {
		palmImg = blankSquare(d.palmSize, DefaultPalmInputSize)
	}
	for range iterations {
		if palmImg != nil {
			if _, err := d.forward(stagePalm, palmImg); err != nil {
				return err
			}
		}
		if _, err := d.infer(img); err != nil {
			return err
		}
	}
	return nil
}

// blankSquare returns a black square of the given side, or fallback when
// size is unset.
func blankSquare(size, fallback int) image.Image {
	if size <= 0 {
		size = fallback
	}
	return imaging.New(size, size, color.Black)
}
