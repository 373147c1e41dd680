package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

// placement is where one shadow chunk request landed.
type placement struct {
	Label string
	Size  uint32
	Page  uint32
	Box   common.Box2D
	OK    bool
}

// Atlas packs the requested chunks into a fresh atlas and prints the placements.
func Atlas(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}

	var requests []placement
	for i := range ctx.Int("point") {
		requests = append(requests, placement{Label: fmt.Sprintf("point %d", i), Size: cfg.Shadow.PointChunk})
	}
	for i := range ctx.Int("directional") {
		requests = append(requests, placement{Label: fmt.Sprintf("directional %d", i), Size: cfg.Shadow.DirectionalSize})
	}
	for i, arg := range ctx.Args() {
		size, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("chunk size %q: %w", arg, err)
		}
		requests = append(requests, placement{Label: fmt.Sprintf("chunk %d", i), Size: uint32(size)})
	}
	if len(requests) == 0 {
		return fmt.Errorf("no chunks requested")
	}

	alloc := shadow.NewAllocator(cfg.Shadow.AtlasSize, cfg.Shadow.AtlasPages)
	placed := packAtlas(alloc, requests)
	writeAtlasReport(os.Stdout, cfg.Shadow, alloc, placed)
	return nil
}

// packAtlas reserves every request in order, as the atlas does for the lights of a frame.
func packAtlas(alloc *shadow.Allocator, requests []placement) []placement {
	out := make([]placement, len(requests))
	for i, r := range requests {
		r.Size = min(r.Size, alloc.Size())
		r.Page, r.Box, r.OK = alloc.ReserveChunk(r.Size, r.Size)
		out[i] = r
	}
	return out
}

// writeAtlasReport prints one row per placement and the free area left on every page.
func writeAtlasReport(w io.Writer, cfg config.Shadow, alloc *shadow.Allocator, placed []placement) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Request", "Size", "Page", "Box", "UV"})

	unshadowed := 0
	for _, p := range placed {
		if !p.OK {
			unshadowed++
			table.Append([]string{p.Label, fmt.Sprint(p.Size), "-", "unshadowed", "-"})
			continue
		}
		uvMin, uvMax := p.Box.UV(alloc.Size())
		table.Append([]string{
			p.Label,
			fmt.Sprint(p.Size),
			fmt.Sprint(p.Page),
			fmt.Sprintf("(%d,%d)-(%d,%d)", p.Box.Min.X, p.Box.Min.Y, p.Box.Max.X, p.Box.Max.Y),
			fmt.Sprintf("(%.4f,%.4f)-(%.4f,%.4f)", uvMin[0], uvMin[1], uvMax[0], uvMax[1]),
		})
	}
	table.SetFooter([]string{"Unshadowed", fmt.Sprint(unshadowed), "", "", ""})
	table.Render()

	pages := tablewriter.NewWriter(w)
	pages.SetAutoFormatHeaders(false)
	pages.SetHeader([]string{"Page", "Free boxes", "Free texels"})
	total := uint64(cfg.AtlasSize) * uint64(cfg.AtlasSize)
	for page := range alloc.Pages() {
		var free uint64
		boxes := alloc.FreeBoxes(page)
		for _, b := range boxes {
			free += b.Area()
		}
		pages.Append([]string{
			fmt.Sprint(page),
			fmt.Sprint(len(boxes)),
			fmt.Sprintf("%d (%.1f%%)", free, 100*float64(free)/float64(total)),
		})
	}
	pages.Render()
}
