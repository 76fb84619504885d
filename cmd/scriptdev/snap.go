// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ScriptDev Contributors

package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/scriptdev/scriptdev/internal/device"
	"github.com/scriptdev/scriptdev/internal/xdg"
)

// snapConfig holds configuration for the snap command.
type snapConfig struct {
	devices []string
	count   int
	outDir  string
}

// NewSnapCmd creates the snap subcommand.
func NewSnapCmd() *cobra.Command {
	cfg := &snapConfig{}

	cmd := &cobra.Command{
		Use:   "snap",
		Short: "Capture frames from scripted cameras",
		Long: `Initialize the selected cameras, snap the requested number of frames
from each and write them as PGM images (raw files for pixels wider than
16 bits).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnap(cmd, cfg)
		},
	}

	cmd.Flags().StringSliceVar(&cfg.devices, "device", nil, "camera name patterns (default: all)")
	cmd.Flags().IntVar(&cfg.count, "count", 1, "frames per camera")
	cmd.Flags().StringVar(&cfg.outDir, "out", "", "output directory (default: XDG_DATA_HOME/scriptdev/frames)")

	return cmd
}

func runSnap(cmd *cobra.Command, cfg *snapConfig) error {
	if cfg.count < 1 {
		return oops.In("cli").With("count", cfg.count).Errorf("count must be at least 1")
	}
	outDir := cfg.outDir
	if outDir == "" {
		var err error
		if outDir, err = xdg.FramesDir(); err != nil {
			return err
		}
	}
	if err := xdg.EnsureDir(outDir); err != nil {
		return err
	}

	set, err := openDevices(cmd, cfg.devices)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer set.close(ctx)

	for name, err := range set.initialize(ctx) {
		slog.Error("device failed to initialize", "device", name, "error", err)
	}
	cameras := set.cameras()
	if len(cameras) == 0 {
		return oops.In("cli").Errorf("no initialized camera to snap")
	}

	for _, cam := range cameras {
		for i := 1; i <= cfg.count; i++ {
			if err := cam.SnapImage(ctx); err != nil {
				return err
			}
			path, err := writeFrame(outDir, cam, i)
			if err != nil {
				return err
			}
			cmd.Println(path)
		}
	}
	return nil
}

// writeFrame writes the camera's pending frame to outDir.
func writeFrame(outDir string, cam *device.Camera, seq int) (string, error) {
	width, err := cam.ImageWidth()
	if err != nil {
		return "", err
	}
	height, err := cam.ImageHeight()
	if err != nil {
		return "", err
	}
	bpp := cam.ImageBytesPerPixel()
	pix := cam.ImageBuffer()

	ext := "pgm"
	if bpp > 2 {
		ext = "raw"
	}
	path := filepath.Join(outDir, fmt.Sprintf("%s-%04d.%s", cam.Name(), seq, ext))

	f, err := os.Create(path) //nolint:gosec // output directory comes from the operator
	if err != nil {
		return "", oops.In("cli").With("path", path).Wrap(err)
	}
	w := bufio.NewWriter(f)
	if ext == "pgm" {
		err = encodePGM(w, width, height, bpp, pix)
	} else {
		_, err = w.Write(pix)
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", oops.In("cli").With("path", path).Wrap(err)
	}
	return path, nil
}

// encodePGM writes a binary PGM. Frame pixels are little endian; PGM
// samples wider than a byte are big endian.
func encodePGM(w *bufio.Writer, width, height, bpp int, pix []byte) error {
	maxVal := 255
	if bpp == 2 {
		maxVal = 65535
	}
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n%d\n", width, height, maxVal); err != nil {
		return err
	}
	if bpp == 1 {
		_, err := w.Write(pix)
		return err
	}
	var sample [2]byte
	for off := 0; off+1 < len(pix); off += 2 {
		binary.BigEndian.PutUint16(sample[:], binary.LittleEndian.Uint16(pix[off:]))
		if _, err := w.Write(sample[:]); err != nil {
			return err
		}
	}
	return nil
}
