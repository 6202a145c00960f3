// Package main is the fieldvision command line tool. It runs the goal pipeline over still images
// and builds colour lookup tables.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/fieldvision/config"
	"go.viam.com/fieldvision/logging"
	"go.viam.com/fieldvision/rimage"
	"go.viam.com/fieldvision/rimage/transform"
	fvutils "go.viam.com/fieldvision/utils"
	"go.viam.com/fieldvision/vision/lut"
	"go.viam.com/fieldvision/vision/objectdetection"
	"go.viam.com/fieldvision/vision/pipeline"
)

const (
	// Flags.
	flagConfig        = "config"
	flagDebug         = "debug"
	flagTable         = "table"
	flagFOV           = "fov"
	flagWidth         = "width"
	flagHeight        = "height"
	flagHeadPitch     = "head-pitch"
	flagHeadYaw       = "head-yaw"
	flagNeckHeight    = "neck-height"
	flagCamera        = "camera"
	flagOutput        = "output"
	flagOverlay       = "overlay"
	flagSnapshot      = "snapshot"
	flagReference     = "ref"
	flagMaxDistance   = "max-distance"
	defaultFOV        = 60
	defaultNeckHeight = 1.2
)

func main() {
	var logger logging.Logger
	registry := logging.NewRegistry()

	app := &cli.App{
		Name:  "fieldvision",
		Usage: "find goal posts in camera images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (JSON or YAML)",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("fieldvision")
			} else {
				logger = logging.NewLogger("fieldvision")
			}
			logger = registry.Register(logger)
			logging.ReplaceGlobal(logger)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "detect goals in images and print them as JSON",
				ArgsUsage: "IMAGE...",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagTable, Usage: "lookup table `FILE`; defaults to the config's lookup_table"},
					&cli.Float64Flag{Name: flagFOV, Value: defaultFOV, Usage: "horizontal field of view in degrees"},
					&cli.IntFlag{Name: flagWidth, Usage: "resize images to this width"},
					&cli.IntFlag{Name: flagHeight, Usage: "resize images to this height"},
					&cli.Float64Flag{Name: flagHeadPitch, Usage: "head pitch in degrees, positive looks down"},
					&cli.Float64Flag{Name: flagHeadYaw, Usage: "head yaw in degrees, positive looks left"},
					&cli.Float64Flag{Name: flagNeckHeight, Value: defaultNeckHeight, Usage: "neck height above the ground in metres"},
					&cli.IntFlag{Name: flagCamera, Usage: "camera index reported with the results"},
					&cli.PathFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "write results to `FILE` instead of stdout"},
					&cli.StringFlag{Name: flagOverlay, Usage: "write a debug drawing per image using `PATTERN` with %d for the image index"},
					&cli.StringFlag{Name: flagSnapshot, Usage: "write a debug snapshot per image using `PATTERN` with %d for the image index"},
				},
				Action: func(c *cli.Context) error {
					return detectAction(c, logger, registry)
				},
			},
			{
				Name:  "build-lut",
				Usage: "build a lookup table from reference colours",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagOutput, Aliases: []string{"o"}, Required: true, Usage: "write the table to `FILE`"},
					&cli.StringSliceFlag{
						Name:     flagReference,
						Required: true,
						Usage:    "reference colour as CLASS=#rrggbb, e.g. field=#1f7a2a; may be repeated",
					},
					&cli.Float64Flag{Name: flagMaxDistance, Value: 0.2, Usage: "largest Lab distance still given a reference's class"},
				},
				Action: func(c *cli.Context) error {
					return buildLUTAction(c, logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type detectResult struct {
	Image   string                  `json:"image"`
	FrameID string                  `json:"frame_id,omitempty"`
	Goals   []*objectdetection.Goal `json:"goals"`
	Error   string                  `json:"error,omitempty"`
}

func detectAction(c *cli.Context, logger logging.Logger, registry *logging.Registry) error {
	if c.NArg() == 0 {
		return errors.New("no images given")
	}
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	cfg.Debug = cfg.Debug || c.Bool(flagDebug)
	tablePath := c.Path(flagTable)
	if tablePath == "" {
		tablePath = cfg.LookUpTable
	}
	if tablePath == "" {
		return errors.New("no lookup table given; use --table or lookup_table in the config")
	}
	table, err := lut.LoadFile(tablePath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, table, logger, pipeline.Options{Registry: registry})
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(p.Close)

	kinematics := transform.NewCameraKinematics(cfg.Calibration)
	kinematics.SetSensors(
		fvutils.DegToRad(c.Float64(flagHeadPitch)),
		fvutils.DegToRad(c.Float64(flagHeadYaw)),
		0, 0,
		r3.Vector{Z: c.Float64(flagNeckHeight)},
	)
	sensors := kinematics.Sensors()

	frames := make([]pipeline.Frame, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		img, err := readImage(path, c.Int(flagWidth), c.Int(flagHeight), fvutils.DegToRad(c.Float64(flagFOV)))
		if err != nil {
			return err
		}
		frames = append(frames, pipeline.Frame{CameraID: c.Int(flagCamera), Image: img, Sensors: sensors})
	}

	results, err := p.ProcessFrames(c.Context, frames)
	if err != nil {
		return err
	}

	out := make([]detectResult, 0, len(results))
	for i, res := range results {
		path := c.Args().Get(i)
		if res.Err != nil {
			logger.Warnw("image failed", "image", path, "error", res.Err)
			out = append(out, detectResult{Image: path, Error: res.Err.Error()})
			continue
		}
		logger.Infow("image processed", "image", path, "goals", len(res.Goals), "latency", res.Latency)
		for _, g := range res.Goals {
			logger.Debugw("goal",
				"image", path,
				"side", g.Side,
				"bearing_deg", fvutils.RadToDeg(g.ScreenAngular.X),
				"measurements", len(g.Measurements),
			)
		}
		out = append(out, detectResult{Image: path, FrameID: res.ClassifiedImage.FrameID.String(), Goals: res.Goals})
		if err := writeDebug(c, i, res); err != nil {
			return err
		}
	}
	return writeJSON(c.Path(flagOutput), out)
}

// readImage loads path and gives it a lens with the requested field of view, resizing first when
// a size is given.
func readImage(path string, width, height int, fov float64) (*rimage.Image, error) {
	var lens rimage.Lens
	if width > 0 && height > 0 {
		var err error
		if lens, err = rimage.NewLensFromFOV(width, height, fov); err != nil {
			return nil, err
		}
	}
	img, err := rimage.ReadImageFromFile(path, lens)
	if err != nil {
		return nil, err
	}
	if lens.Width == 0 {
		if img.Lens, err = rimage.NewLensFromFOV(img.Width(), img.Height(), fov); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func writeDebug(c *cli.Context, index int, res pipeline.FrameResult) error {
	overlayPattern, snapshotPattern := c.String(flagOverlay), c.String(flagSnapshot)
	if overlayPattern == "" && snapshotPattern == "" {
		return nil
	}
	snap, err := objectdetection.NewDebugSnapshot(res.ClassifiedImage, res.Goals)
	if err != nil {
		return err
	}
	if snapshotPattern != "" {
		if err := writeJSON(fmt.Sprintf(snapshotPattern, index), snap); err != nil {
			return err
		}
	}
	if overlayPattern != "" {
		drawn, err := objectdetection.Overlay(res.ClassifiedImage.Image, snap)
		if err != nil {
			return err
		}
		if err := rimage.WriteImageToFile(fmt.Sprintf(overlayPattern, index), drawn); err != nil {
			return err
		}
	}
	return nil
}

func buildLUTAction(c *cli.Context, logger logging.Logger) error {
	refs := make([]lut.Reference, 0, len(c.StringSlice(flagReference)))
	for _, arg := range c.StringSlice(flagReference) {
		ref, err := parseReference(arg)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	table, err := lut.BuildFromReferences(c.Context, refs, c.Float64(flagMaxDistance))
	if err != nil {
		return err
	}
	for _, class := range lut.Classes {
		logger.Infow("table built", "class", class, "cells", table.Count(class))
	}
	return table.SaveFile(c.Path(flagOutput))
}

// parseReference parses CLASS=#rrggbb.
func parseReference(arg string) (lut.Reference, error) {
	name, hex, ok := strings.Cut(arg, "=")
	if !ok {
		return lut.Reference{}, errors.Errorf("reference %q is not CLASS=#rrggbb", arg)
	}
	class, err := lut.ClassFromString(strings.TrimSpace(name))
	if err != nil {
		return lut.Reference{}, err
	}
	ref, err := lut.NewReference(class, strings.TrimSpace(hex))
	if err != nil {
		return lut.Reference{}, errors.Wrapf(err, "reference %q", arg)
	}
	return ref, nil
}

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return config.Default(), nil
	}
	return config.Read(path, logger)
}

func writeJSON(path string, v interface{}) (err error) {
	var w io.Writer = os.Stdout
	if path != "" {
		//nolint:gosec
		f, createErr := os.Create(path)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
		}()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

