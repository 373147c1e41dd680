package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/fx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

// libraries are the embedded shader libraries in frame order.
func libraries() []*shader.Library {
	return []*shader.Library{deferred.Shaders(), shadow.Shaders(), fx.Shaders()}
}

// Shaders lists every embedded shader with its bindings, or dumps one pre-processed source.
func Shaders(ctx *cli.Context) error {
	if _, err := setup(ctx); err != nil {
		return err
	}
	if name := ctx.String("dump"); name != "" {
		s, err := findShader(name)
		if err != nil {
			return err
		}
		fmt.Println(s.Source())
		return nil
	}
	return writeShaderTable(os.Stdout)
}

// findShader loads the shader stored in the named file of any library.
func findShader(file string) (shader.Shader, error) {
	key, stage, ok := shader.ParseFile(file)
	if !ok {
		return nil, fmt.Errorf("%q is not a <key>.<vert|frag|comp>.wgsl file name", file)
	}
	for _, lib := range libraries() {
		files, err := lib.Files()
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f == file {
				return lib.Get(key, stage)
			}
		}
	}
	return nil, fmt.Errorf("no shader file %q", file)
}

// writeShaderTable prints one row per binding of every shader.
func writeShaderTable(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoMergeCells(true)
	table.SetRowLine(true)
	table.SetHeader([]string{"Library", "Shader", "Workgroup", "Binding", "Name", "Kind"})

	for _, lib := range libraries() {
		files, err := lib.Files()
		if err != nil {
			return err
		}
		for _, f := range files {
			key, stage, ok := shader.ParseFile(f)
			if !ok {
				continue
			}
			s, err := lib.Get(key, stage)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			workgroup := "-"
			if stage == shader.ShaderTypeCompute {
				wg := s.WorkgroupSize()
				workgroup = fmt.Sprintf("%dx%dx%d", wg[0], wg[1], wg[2])
			}
			bindings := s.Bindings()
			if len(bindings) == 0 {
				table.Append([]string{lib.Name(), f, workgroup, "-", "-", "-"})
				continue
			}
			for _, b := range bindings {
				table.Append([]string{
					lib.Name(), f, workgroup,
					fmt.Sprintf("@group(%d) @binding(%d)", b.Group, b.Binding),
					b.Name, b.Kind.String(),
				})
			}
		}
	}
	table.Render()
	return nil
}
