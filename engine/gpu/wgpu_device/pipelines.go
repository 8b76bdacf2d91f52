package wgpu_device

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// pipelineKey identifies a render pipeline by the attachments of the pass it is used in.
type pipelineKey struct {
	blit    bool
	color   wgpu.TextureFormat
	depth   wgpu.TextureFormat
	samples uint32
}

// pipelineCache owns the two shader programs and builds one pipeline per attachment combination.
// Every method is called with the device lock held.
type pipelineCache struct {
	dev  *device
	once *sync.Once
	err  error

	drawModule *wgpu.ShaderModule
	blitModule *wgpu.ShaderModule
	drawLayout *wgpu.BindGroupLayout
	blitLayout *wgpu.BindGroupLayout
	drawPL     *wgpu.PipelineLayout
	blitPL     *wgpu.PipelineLayout
	sampler    *wgpu.Sampler

	pipelines map[pipelineKey]*wgpu.RenderPipeline
}

func newPipelineCache(d *device) *pipelineCache {
	return &pipelineCache{
		dev:       d,
		once:      &sync.Once{},
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
	}
}

func (c *pipelineCache) init() error {
	c.once.Do(func() {
		c.err = c.create()
	})
	return c.err
}

func (c *pipelineCache) create() error {
	dev := c.dev.dev
	var err error

	c.drawModule, err = dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "vertex_color.wgsl",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: vertexColorSource},
	})
	if err != nil {
		return errors.Wrap(err, "compile vertex color shader")
	}
	c.blitModule, err = dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "blit.wgsl",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: blitSource},
	})
	if err != nil {
		return errors.Wrap(err, "compile blit shader")
	}

	c.drawLayout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Draw Uniform Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64((&GPUDrawUniform{}).Size()),
			},
		}},
	})
	if err != nil {
		return errors.Wrap(err, "create draw bind group layout")
	}
	c.blitLayout, err = dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Blit Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create blit bind group layout")
	}

	c.drawPL, err = dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Draw Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{c.drawLayout},
	})
	if err != nil {
		return errors.Wrap(err, "create draw pipeline layout")
	}
	c.blitPL, err = dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Blit Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{c.blitLayout},
	})
	if err != nil {
		return errors.Wrap(err, "create blit pipeline layout")
	}

	c.sampler, err = dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Blit Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return errors.Wrap(err, "create blit sampler")
	}
	return nil
}

// get returns the pipeline for key, building it on first use.
func (c *pipelineCache) get(key pipelineKey) (*wgpu.RenderPipeline, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	module, layout, label := c.drawModule, c.drawPL, "Draw Pipeline"
	var buffers []wgpu.VertexBufferLayout
	if key.blit {
		module, layout, label = c.blitModule, c.blitPL, "Blit Pipeline"
	} else {
		buffers = []wgpu.VertexBufferLayout{vertexLayout}
	}

	var depthStencil *wgpu.DepthStencilState
	if key.depth != wgpu.TextureFormatUndefined {
		compare := wgpu.CompareFunctionLess
		if key.blit {
			compare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            key.depth,
			DepthWriteEnabled: !key.blit,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	p, err := c.dev.dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    key.color,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: key.samples,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %s (%v, depth %v, %dx)", label, key.color, key.depth, key.samples)
	}
	c.pipelines[key] = p
	return p, nil
}

func (c *pipelineCache) release() {
	for k, p := range c.pipelines {
		p.Release()
		delete(c.pipelines, k)
	}
	if c.sampler != nil {
		c.sampler.Release()
	}
	if c.blitPL != nil {
		c.blitPL.Release()
	}
	if c.drawPL != nil {
		c.drawPL.Release()
	}
	if c.blitLayout != nil {
		c.blitLayout.Release()
	}
	if c.drawLayout != nil {
		c.drawLayout.Release()
	}
	if c.blitModule != nil {
		c.blitModule.Release()
	}
	if c.drawModule != nil {
		c.drawModule.Release()
	}
}
