package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/hand"
)

// fileResult is the outcome of analyzing one image file.
type fileResult struct {
	Path    string
	Overlay string
	Found   bool
	Fingers int
	Elapsed time.Duration
	Err     error
}

func runAnalyze(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	modelName := fs.String("model", cfg.ColorModel, "skin color model (ycrcb or hsv)")
	outDir := fs.String("out", "", "directory for overlay images (default: next to each input)")
	jobs := fs.Int("jobs", runtime.NumCPU(), "files analyzed in parallel")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: mudra analyze [-model m] [-out dir] [-jobs n] files...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: no input files", hand.ErrInvalidArgument)
	}

	model, err := hand.ParseColorModel(*modelName)
	if err != nil {
		return err
	}
	analyzer, err := hand.NewAnalyzer(cfg.AnalyzerOptions())
	if err != nil {
		return err
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	results, err := analyzeFiles(ctx, analyzer, model, fs.Args(), *outDir, *jobs)
	if err != nil {
		return err
	}
	failed := printResults(os.Stdout, results)

	log.WithFields(logrus.Fields{
		"files":  len(results),
		"failed": failed,
		"model":  model.String(),
	}).Debug("analysis finished")

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// analyzeFiles runs the pipeline over paths with at most jobs files in
// flight. Per-file failures are reported in the results; only cancellation
// aborts the batch.
func analyzeFiles(ctx context.Context, analyzer *hand.Analyzer, model hand.ColorModel, paths []string, outDir string, jobs int) ([]fileResult, error) {
	if jobs <= 0 {
		jobs = 1
	}
	results := make([]fileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeFile(analyzer, model, path, outDir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func analyzeFile(analyzer *hand.Analyzer, model hand.ColorModel, path, outDir string) fileResult {
	res := fileResult{Path: path}
	start := time.Now()

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		res.Err = fmt.Errorf("%w: cannot read image %s", hand.ErrInvalidArgument, path)
		return res
	}
	defer img.Close()

	canvas := img.Clone()
	defer canvas.Close()

	analysis, err := analyzer.AnalyzeOnto(img, model, &canvas)
	if err != nil {
		res.Err = err
		return res
	}
	defer analysis.Close()

	res.Found = analysis.Found
	res.Fingers = analysis.Fingers()
	res.Overlay = overlayPath(path, outDir)
	if ok := gocv.IMWrite(res.Overlay, canvas); !ok {
		res.Err = errors.New("failed to write overlay " + res.Overlay)
	}
	res.Elapsed = time.Since(start)
	return res
}

// overlayPath maps dir/name.ext to <outDir or dir>/name_overlay.png.
func overlayPath(path, outDir string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "_overlay.png"
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	return filepath.Join(outDir, name)
}

// printResults writes one line per file and returns the number of failures.
func printResults(w io.Writer, results []fileResult) int {
	ok := color.New(color.FgGreen, color.Bold)
	none := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			bad.Fprintf(w, "%s: error: %v\n", r.Path, r.Err)
		case !r.Found:
			none.Fprintf(w, "%s: no hand\n", r.Path)
		default:
			ok.Fprintf(w, "%s: %d fingers", r.Path, r.Fingers)
			fmt.Fprintf(w, " (%s, overlay %s)\n", r.Elapsed.Round(time.Millisecond), r.Overlay)
		}
	}
	return failed
}
