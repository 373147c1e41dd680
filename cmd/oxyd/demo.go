package main

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

const (
	crateSpacing = 3
	lightHeight  = 2.5
	orbitPeriod  = 12 // seconds per revolution
	lampCutoff   = 0.01
	cameraFov    = math32.Pi / 3
)

// demo is the viewer scene: a floor, a grid of crates, orbiting point lights and a sun.
type demo struct {
	scene  scene.Scene
	camera scene.Node
	orbit  *camera.Orbit
	crates []scene.Node
	floor  scene.Node
	lamps  []scene.Node
	radius float32
	time   float32
	paused bool
}

// newDemo builds the scene graph. Drawables are attached by furnish once the renderer's base
// material exists.
func newDemo(grid, lights, shadows int) *demo {
	d := &demo{
		radius: float32(grid) * crateSpacing * 0.5,
	}
	d.orbit = camera.NewOrbit(camera.WithRadius(d.radius*2.5+4), camera.WithElevation(0.5), camera.WithTarget(0, 0, 0))
	d.camera = scene.NewNode("camera", scene.WithAspects(camera.NewCamera(camera.WithFov(cameraFov), camera.WithFar(500))))
	d.updateCamera()

	nodes := []scene.Node{d.camera}
	d.floor = scene.NewNode("floor", scene.WithPosition(0, -0.6, 0), scene.WithScale(d.radius*2+6, 0.2, d.radius*2+6))
	nodes = append(nodes, d.floor)

	offset := float32(grid-1) * crateSpacing * 0.5
	for i := range grid * grid {
		x := float32(i%grid)*crateSpacing - offset
		z := float32(i/grid)*crateSpacing - offset
		crate := scene.NewNode(fmt.Sprintf("crate %d", i), scene.WithPosition(x, 0, z))
		d.crates = append(d.crates, crate)
		nodes = append(nodes, crate)
	}

	for i := range lights {
		hue := float32(i) / float32(max(lights, 1))
		r, g, b := hueColor(hue)
		lamp := scene.NewNode(fmt.Sprintf("lamp %d", i), scene.WithAspects(light.NewLight(light.LightTypePoint,
			light.WithColor(r, g, b),
			light.WithIntensity(4),
			light.WithAttenuation(1, 0, 0.5),
			light.WithCutoff(lampCutoff),
			light.WithCastsShadows(i < shadows),
		)))
		d.lamps = append(d.lamps, lamp)
		nodes = append(nodes, lamp)
	}
	d.placeLamps()

	sun := scene.NewNode("sun", scene.WithDirection(-0.4, -1, 0.3), scene.WithAspects(light.NewLight(light.LightTypeDirectional,
		light.WithColor(1, 0.95, 0.85),
		light.WithIntensity(0.6),
		light.WithCastsShadows(true),
	)))
	nodes = append(nodes, sun)

	d.scene = scene.NewScene(scene.WithName("demo"), scene.WithNodes(nodes...), scene.WithMainCamera(d.camera))
	return d
}

// furnish gives the crates and floor their meshes and materials instantiated from base.
func (d *demo) furnish(base material.Material) error {
	cube := resource.NewHandle(model.NewCube(1), nil)
	defer cube.Drop()

	floorMat := base.Instantiate("Floor")
	if err := floorMat.SetVector("albedo", []float32{0.35, 0.35, 0.38}); err != nil {
		return err
	}
	d.floor.AddAspect(scene.NewDrawable(cube.Clone(), resource.NewHandle(floorMat, nil)))

	for i, crate := range d.crates {
		mat := base.Instantiate(crate.Name())
		r, g, b := hueColor(float32(i) / float32(len(d.crates)))
		if err := mat.SetVector("albedo", []float32{0.5 + r*0.5, 0.5 + g*0.5, 0.5 + b*0.5}); err != nil {
			return err
		}
		if err := mat.SetFloat("shininess", float32(8+i%4*24)); err != nil {
			return err
		}
		crate.AddAspect(scene.NewDrawable(cube.Clone(), resource.NewHandle(mat, nil)))
	}
	return nil
}

// tick advances the lights.
func (d *demo) tick(dt float32) {
	if !d.paused {
		d.time += dt
	}
	d.placeLamps()
}

// placeLamps spreads the lamps evenly on a circle turning with time.
func (d *demo) placeLamps() {
	phase := d.time * 2 * math32.Pi / orbitPeriod
	for i, lamp := range d.lamps {
		a := phase + float32(i)*2*math32.Pi/float32(len(d.lamps))
		r := d.radius * (0.5 + 0.5*float32(i%2))
		lamp.SetPosition(r*math32.Cos(a), lightHeight, r*math32.Sin(a))
	}
}

// updateCamera moves the camera node to the orbit eye, facing the grid center.
func (d *demo) updateCamera() {
	p := d.orbit.Position()
	d.camera.SetPosition(p[0], p[1], p[2])
	d.camera.LookAt(mgl32.Vec3(d.orbit.Target()))
}

// hueColor converts a hue in [0, 1) at full saturation and value to RGB.
func hueColor(h float32) (float32, float32, float32) {
	h = (h - math32.Floor(h)) * 6
	x := 1 - math32.Abs(math32.Mod(h, 2)-1)
	switch int(h) {
	case 0:
		return 1, x, 0
	case 1:
		return x, 1, 0
	case 2:
		return 0, 1, x
	case 3:
		return 0, x, 1
	case 4:
		return x, 0, 1
	default:
		return 1, 0, x
	}
}
