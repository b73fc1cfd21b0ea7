// Package graphfile loads declarative render graph descriptions.
//
// A graph file is YAML. It names the external resources the graph binds
// and the nodes with their declarations; nodes either only declare
// resources (kind "pass", the default, useful for planning) or map to the
// GPU nodes of package nodes:
//
//	label: blur
//	externals:
//	  textures:
//	    - {id: backbuffer, usage: RenderAttachment|CopyDst, width: 1280, height: 720, format: BGRA8Unorm}
//	nodes:
//	  - name: scene
//	    outputs:
//	      textures:
//	        - {id: color, usage: RenderAttachment, width: 1280, height: 720, format: RGBA8Unorm}
//	  - name: present
//	    endpoint: true
//	    inputs:
//	      textures: [{id: color, usage: TextureBinding}]
//	    outputs:
//	      textures: [{id: backbuffer, usage: RenderAttachment}]
//
// Usages are written as resource.BufferUsageName and
// resource.TextureUsageName print them.
package graphfile
