package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"

	"tomgalvin.uk/catprint/internal/config"
	"tomgalvin.uk/catprint/internal/history"
	"tomgalvin.uk/catprint/internal/printer"
	"tomgalvin.uk/catprint/internal/render"
)

// renderFlags binds the print settings to flags, defaulting to p.
func renderFlags(fs *flag.FlagSet, p *config.Print) {
	fs.StringVar(&p.Dither, "dither", p.Dither, "dither algorithm: threshold, floyd, atkinson, sierra, bayer or stucki")
	fs.IntVar(&p.Threshold, "threshold", p.Threshold, "cutoff for the threshold algorithm (0-255)")
	fs.IntVar(&p.Brightness, "brightness", p.Brightness, "brightness adjustment (-100 to 100)")
	fs.IntVar(&p.Contrast, "contrast", p.Contrast, "contrast adjustment (-100 to 100)")
	fs.IntVar(&p.Sharpen, "sharpen", p.Sharpen, "sharpening amount (0-100)")
}

func quantizeFile(path string, p config.Print) (*render.Result, error) {
	if _, err := render.ParseAlgorithm(p.Dither); err != nil {
		return nil, err
	}
	img, err := render.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return render.Quantize(img, p.RenderOptions())
}

func writePreview(path string, result *render.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Couldn't create preview:\n%w", err)
	}
	if err := png.Encode(f, render.Preview(result.Bitmap)); err != nil {
		f.Close()
		return fmt.Errorf("Couldn't write preview:\n%w", err)
	}
	return f.Close()
}

func previewCommand(cfg config.Values, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	p := cfg.Print
	renderFlags(fs, &p)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("preview needs an input image and an output file")
	}

	result, err := quantizeFile(fs.Arg(0), p)
	if err != nil {
		return err
	}
	if err := writePreview(fs.Arg(1), result); err != nil {
		return err
	}
	logger.Info("Wrote preview", "path", fs.Arg(1), "width", result.Width, "height", result.Height)
	return nil
}

func printCommand(ctx context.Context, cfg config.Values, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("print", flag.ContinueOnError)
	p := cfg.Print
	renderFlags(fs, &p)
	fs.IntVar(&p.Energy, "energy", p.Energy, "heating energy (0-255)")
	fs.IntVar(&p.FeedLines, "feed", p.FeedLines, "blank lines to feed after printing (0-255)")
	preview := fs.String("o", "", "also write the dithered image to this PNG file")
	noHistory := fs.Bool("no-history", false, "don't record the job in the database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("print needs exactly one image")
	}

	result, err := quantizeFile(fs.Arg(0), p)
	if err != nil {
		return err
	}
	if *preview != "" {
		if err := writePreview(*preview, result); err != nil {
			return err
		}
	}

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return err
	}
	session := printer.NewSession(transport,
		printer.WithLogger(logger.With("src", "printer")),
		printer.WithChunkSize(cfg.ChunkSize),
	)
	if !session.IsSupported() {
		return printer.ErrUnsupportedTransport
	}
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect()

	var repo *history.Repository
	job := &history.Job{
		DeviceName: session.DeviceName(),
		Width:      result.Width,
		Height:     result.Height,
		Algorithm:  p.Dither,
		Energy:     p.Energy,
	}
	if !*noHistory {
		if repo, err = NewRepository(cfg.Database); err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Create(job); err != nil {
			return err
		}
		repo.Start(job.Uuid, job.DeviceName)
	}

	last := -1
	err = session.PrintImage(ctx, result.Bitmap, p.PrintParams(), func(percent int) {
		if percent/10 != last/10 {
			logger.Info("Printing", "progress", fmt.Sprintf("%d%%", percent))
		}
		last = percent
	})

	if repo != nil {
		if ferr := repo.Finish(job.Uuid, err); ferr != nil {
			logger.Warn("Couldn't record job result", "error", ferr)
		}
	}
	return err
}
