package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "oxyd"
	app.Usage = "deferred WebGPU renderer viewer and tools"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML configuration file; missing keys keep their defaults",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "open a window and render the demo scene",
			Description: `
Render a grid of crates lit by orbiting point lights and a shadow-casting sun.
Drag with the left or middle mouse button to orbit and scroll to zoom. P toggles
the profiler log, R reloads the configuration file and space pauses the lights.
The configuration file, if given, is also reloaded on every save.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "lights",
					Value: 16,
					Usage: "number of orbiting point lights",
				},
				cli.IntFlag{
					Name:  "grid",
					Value: 6,
					Usage: "crates per side of the grid",
				},
				cli.IntFlag{
					Name:  "shadows",
					Value: 4,
					Usage: "number of point lights casting shadows",
				},
				cli.StringFlag{
					Name:  "shaders",
					Usage: "directory of .wgsl overrides reloaded on change",
				},
				cli.BoolFlag{
					Name:  "profile",
					Usage: "log frame statistics every second",
				},
				cli.Float64Flag{
					Name:  "fps",
					Usage: "cap the render loop (0 = uncapped)",
				},
				cli.Float64Flag{
					Name:  "tick-rate",
					Value: 60,
					Usage: "scene updates per second",
				},
			},
			Action: Run,
		},
		{
			Name:      "atlas",
			Usage:     "simulate shadow atlas packing",
			ArgsUsage: "size1 size2 ...",
			Description: `
Reserve one chunk per argument (or per light given with --point and --directional)
in a fresh atlas sized by the configuration and print where every chunk lands.
Requests that do not fit are reported as unshadowed.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "point",
					Usage: "number of point lights using the configured point chunk size",
				},
				cli.IntFlag{
					Name:  "directional",
					Usage: "number of directional lights using the configured directional chunk size",
				},
			},
			Action: Atlas,
		},
		{
			Name:  "shaders",
			Usage: "list the embedded shaders and their reflected bindings",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "dump",
					Usage: "print the pre-processed source of the shader with this file name",
				},
			},
			Action: Shaders,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
