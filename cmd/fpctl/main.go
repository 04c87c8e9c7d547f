// fpctl is the command-line collaborator of the fingerprint engine: it
// lists candidate scanners, runs captures, and compares templates.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karalabe/usb"

	"github.com/veritouch/fpscan/internal/config"
	"github.com/veritouch/fpscan/internal/logging"
	"github.com/veritouch/fpscan/pkg/fmr"
	"github.com/veritouch/fpscan/pkg/fpimage"
	"github.com/veritouch/fpscan/pkg/matcher"
	"github.com/veritouch/fpscan/pkg/scanner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = runList()
	case "capture":
		err = runCapture(os.Args[2:])
	case "match":
		err = runMatch(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fpctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  fpctl list
  fpctl capture [-config file] [-out image.pgm] [-template out.fmr] [-timeout 10s] [-min-quality 40]
  fpctl match  [-config file] -a <template|image> -b <template|image>
  fpctl export -in template.fmr -out template.cbor`)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runList() error {
	infos, err := usb.Enumerate(0, 0)
	if err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("no USB devices visible")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%04x:%04x  %-24s %s\n", info.VendorID, info.ProductID, info.Product, info.Path)
	}
	return nil
}

func runCapture(args []string) error {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	cfgPath := fs.String("config", "", "TOML config file")
	outImage := fs.String("out", "capture.pgm", "output image file (PGM)")
	outTemplate := fs.String("template", "capture.fmr", "output template file")
	timeout := fs.Duration("timeout", 0, "finger-detection timeout (0 = configured default)")
	minQuality := fs.Int("min-quality", 0, "minimum quality score (0 = configured default)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := scanner.NewSession(cfg, scanner.Probe(cfg))
	if _, err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect()

	res, err := session.Capture(ctx, scanner.CaptureOptions{
		Timeout:    *timeout,
		MinQuality: *minQuality,
	})
	if err != nil {
		return err
	}

	img, err := fpimage.New(res.Width, res.Height, res.Image)
	if err != nil {
		return err
	}
	if err := fpimage.SaveFile(*outImage, img); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := os.WriteFile(*outTemplate, res.Template, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	fmt.Printf("captured %dx%d frame, quality %d, template %d bytes\n",
		res.Width, res.Height, res.Quality, len(res.Template))
	return nil
}

func runMatch(args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	cfgPath := fs.String("config", "", "TOML config file")
	pathA := fs.String("a", "", "probe template or image file")
	pathB := fs.String("b", "", "candidate template or image file")
	fs.Parse(args)
	if *pathA == "" || *pathB == "" {
		return fmt.Errorf("match needs both -a and -b")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}

	a, err := loadTemplate(*pathA, cfg)
	if err != nil {
		return err
	}
	b, err := loadTemplate(*pathB, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	r := matcher.Match(a, b, matcher.Options{
		DistanceThreshold: cfg.Match.DistanceThreshold,
		AngleThreshold:    cfg.Match.AngleThreshold,
		ScoreThreshold:    cfg.Match.ScoreThreshold,
		StrictPairing:     cfg.Match.StrictPairing,
	})
	if r.Error != "" {
		return fmt.Errorf("match: %s", r.Error)
	}
	fmt.Printf("matched=%v score=%d (%d/%d minutiae, %s)\n",
		r.Matched, r.Score, r.MatchedCount, r.TotalCount, time.Since(start).Round(time.Millisecond))
	return nil
}

// loadTemplate accepts either an encoded template file or a fingerprint
// image (PNG/JPEG/WSQ/PGM) that it analyzes on the fly.
func loadTemplate(path string, cfg *config.Config) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := fmr.Decode(blob); err == nil {
		return blob, nil
	}

	img, err := fpimage.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s is neither a template nor a decodable image: %w", path, err)
	}
	minutiae := fpimage.ExtractMinutiae(img)
	return fmr.Encode(uint16(img.Width), uint16(img.Height), uint16(cfg.Capture.DPI), minutiae)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	in := fs.String("in", "", "binary template file")
	out := fs.String("out", "", "portable CBOR output file")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return fmt.Errorf("export needs both -in and -out")
	}

	blob, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	tmpl, err := fmr.Decode(blob)
	if err != nil {
		return err
	}
	portable, err := fmr.MarshalPortable(tmpl)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, portable, 0o644); err != nil {
		return err
	}
	fmt.Printf("exported %d minutiae to %s\n", len(tmpl.Minutiae), *out)
	return nil
}
