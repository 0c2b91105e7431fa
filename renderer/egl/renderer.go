package egl

/*
#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <GLES2/gl2.h>
#include <GLES2/gl2ext.h>

#include <stdlib.h>

static EGLImageKHR createImageKHR(EGLDisplay dpy, EGLenum target, EGLClientBuffer buf, const EGLint *attribs) {
	PFNEGLCREATEIMAGEKHRPROC create =
		(PFNEGLCREATEIMAGEKHRPROC)eglGetProcAddress("eglCreateImageKHR");
	if (create == NULL) {
		return EGL_NO_IMAGE_KHR;
	}
	return create(dpy, EGL_NO_CONTEXT, target, buf, attribs);
}

static void destroyImageKHR(EGLDisplay dpy, EGLImageKHR img) {
	PFNEGLDESTROYIMAGEKHRPROC destroy =
		(PFNEGLDESTROYIMAGEKHRPROC)eglGetProcAddress("eglDestroyImageKHR");
	if (destroy != NULL) {
		destroy(dpy, img);
	}
}

static void imageTargetTexture2D(EGLImageKHR img) {
	PFNGLEGLIMAGETARGETTEXTURE2DOESPROC bind =
		(PFNGLEGLIMAGETARGETTEXTURE2DOESPROC)eglGetProcAddress("glEGLImageTargetTexture2DOES");
	if (bind != NULL) {
		bind(GL_TEXTURE_2D, img);
	}
}
*/
import "C"

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/renderer"
)

const vertexShaderSrc = `
attribute vec2 pos;
attribute vec2 texcoord;
uniform mat3 proj;
varying vec2 v_texcoord;
void main() {
	vec3 p = proj * vec3(pos, 1.0);
	gl_Position = vec4(p.xy, 0.0, 1.0);
	v_texcoord = texcoord;
}
`

const fragmentShaderSrc = `
precision mediump float;
uniform sampler2D tex;
uniform float alpha;
varying vec2 v_texcoord;
void main() {
	gl_FragColor = texture2D(tex, v_texcoord) * alpha;
}
`

// The GL side of one device's allocator. Holds the quad shader used for
// texture blits; all drawing goes through it
type Renderer struct {
	alloc *Allocator

	program  C.GLuint
	attrPos  C.GLint
	attrTex  C.GLint
	uniProj  C.GLint
	uniAlpha C.GLint

	// Surface currently bound for drawing, set by Bind
	current C.EGLSurface

	formats []renderer.Format
}

func newRenderer(a *Allocator) (*Renderer, error) {
	r := &Renderer{alloc: a, current: C.EGLSurface(C.EGL_NO_SURFACE)}

	vert, err := compileShader(C.GL_VERTEX_SHADER, vertexShaderSrc)
	if err != nil {
		return nil, err
	}
	frag, err := compileShader(C.GL_FRAGMENT_SHADER, fragmentShaderSrc)
	if err != nil {
		C.glDeleteShader(vert)
		return nil, err
	}

	r.program = C.glCreateProgram()
	C.glAttachShader(r.program, vert)
	C.glAttachShader(r.program, frag)
	C.glLinkProgram(r.program)
	C.glDeleteShader(vert)
	C.glDeleteShader(frag)

	var linked C.GLint
	C.glGetProgramiv(r.program, C.GL_LINK_STATUS, &linked)
	if linked == C.GL_FALSE {
		C.glDeleteProgram(r.program)
		return nil, errors.New("quad shader link failed")
	}

	r.attrPos = glGetAttrib(r.program, "pos")
	r.attrTex = glGetAttrib(r.program, "texcoord")
	r.uniProj = glGetUniform(r.program, "proj")
	r.uniAlpha = glGetUniform(r.program, "alpha")

	// Without the dmabuf format query extension we still know what the
	// scanout path itself uses
	r.formats = []renderer.Format{
		{Code: renderer.FormatXRGB8888, Modifier: renderer.ModifierLinear},
	}
	return r, nil
}

func compileShader(kind C.GLenum, src string) (C.GLuint, error) {
	shader := C.glCreateShader(kind)
	csrc := C.CString(src)
	defer C.free(unsafe.Pointer(csrc))
	C.glShaderSource(shader, 1, &csrc, nil)
	C.glCompileShader(shader)
	var ok C.GLint
	C.glGetShaderiv(shader, C.GL_COMPILE_STATUS, &ok)
	if ok == C.GL_FALSE {
		C.glDeleteShader(shader)
		return 0, fmt.Errorf("shader compile failed (kind 0x%x)", uint32(kind))
	}
	return shader, nil
}

func glGetAttrib(program C.GLuint, name string) C.GLint {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.GLint(C.glGetAttribLocation(program, cname))
}

func glGetUniform(program C.GLuint, name string) C.GLint {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.glGetUniformLocation(program, cname)
}

func (r *Renderer) Bind(buf renderer.Buffer) error {
	target, ok := buf.(*swapchainBuffer)
	if !ok {
		return fmt.Errorf("foreign buffer type %T", buf)
	}
	if C.eglMakeCurrent(r.alloc.display, target.sc.eglSurface, target.sc.eglSurface, r.alloc.context) == C.EGL_FALSE {
		return classifyEGLError("eglMakeCurrent")
	}
	r.current = target.sc.eglSurface
	return nil
}

// Runs draw against the bound surface. The projection maps buffer pixel
// coordinates to clip space, with the transform folded in
func (r *Renderer) Render(size generaldata.Vector2i, transform generaldata.Transform, draw func(renderer.Frame) error) error {
	C.glViewport(0, 0, C.GLsizei(size.X), C.GLsizei(size.Y))
	frame := &glFrame{rend: r, size: size, proj: projectionFor(size, transform)}
	if err := draw(frame); err != nil {
		return err
	}
	C.glFlush()
	return nil
}

// Column-major 3x3 mapping pixel coordinates to NDC
func projectionFor(size generaldata.Vector2i, transform generaldata.Transform) [9]float32 {
	sx := 2.0 / float32(size.X)
	sy := 2.0 / float32(size.Y)
	switch transform {
	case generaldata.TransformFlipped180:
		// Scanout is vertically inverted relative to GL's coordinate
		// system, this transform cancels that out
		return [9]float32{
			sx, 0, 0,
			0, sy, 0,
			-1, -1, 1,
		}
	default:
		return [9]float32{
			sx, 0, 0,
			0, -sy, 0,
			-1, 1, 1,
		}
	}
}

type glFrame struct {
	rend *Renderer
	size generaldata.Vector2i
	proj [9]float32
}

func (f *glFrame) Clear(r, g, b, a float32) error {
	C.glClearColor(C.GLfloat(r), C.GLfloat(g), C.GLfloat(b), C.GLfloat(a))
	C.glClear(C.GL_COLOR_BUFFER_BIT)
	return nil
}

func (f *glFrame) RenderTextureAt(tex renderer.Texture, loc generaldata.Vector2i, scale float64, alpha float32) error {
	glTex, ok := tex.(*glTexture)
	if !ok {
		return fmt.Errorf("foreign texture type %T", tex)
	}

	size := glTex.size
	x0 := float32(loc.X)
	y0 := float32(loc.Y)
	x1 := x0 + float32(float64(size.X)*scale)
	y1 := y0 + float32(float64(size.Y)*scale)

	// Two triangles, interleaved position and texcoord
	verts := [16]float32{
		x0, y0, 0, 0,
		x1, y0, 1, 0,
		x0, y1, 0, 1,
		x1, y1, 1, 1,
	}

	r := f.rend
	C.glUseProgram(r.program)
	C.glUniformMatrix3fv(r.uniProj, 1, C.GL_FALSE, (*C.GLfloat)(unsafe.Pointer(&f.proj[0])))
	C.glUniform1f(r.uniAlpha, C.GLfloat(alpha))

	C.glEnable(C.GL_BLEND)
	C.glBlendFunc(C.GL_ONE, C.GL_ONE_MINUS_SRC_ALPHA)

	C.glActiveTexture(C.GL_TEXTURE0)
	C.glBindTexture(C.GL_TEXTURE_2D, glTex.id)

	stride := C.GLsizei(4 * 4)
	base := unsafe.Pointer(&verts[0])
	C.glVertexAttribPointer(C.GLuint(r.attrPos), 2, C.GL_FLOAT, C.GL_FALSE, stride, base)
	C.glVertexAttribPointer(C.GLuint(r.attrTex), 2, C.GL_FLOAT, C.GL_FALSE, stride, unsafe.Pointer(uintptr(base)+8))
	C.glEnableVertexAttribArray(C.GLuint(r.attrPos))
	C.glEnableVertexAttribArray(C.GLuint(r.attrTex))

	C.glDrawArrays(C.GL_TRIANGLE_STRIP, 0, 4)

	C.glDisableVertexAttribArray(C.GLuint(r.attrPos))
	C.glDisableVertexAttribArray(C.GLuint(r.attrTex))
	C.glDisable(C.GL_BLEND)
	return nil
}

type glTexture struct {
	rend *Renderer
	id   C.GLuint
	size generaldata.Vector2i
	// Non-nil for dmabuf imports, destroyed with the texture
	image C.EGLImageKHR
}

func (t *glTexture) Size() generaldata.Vector2i { return t.size }

func (t *glTexture) Destroy() {
	C.glDeleteTextures(1, &t.id)
	if t.image != C.EGLImageKHR(C.EGL_NO_IMAGE_KHR) {
		C.destroyImageKHR(t.rend.alloc.display, t.image)
		t.image = C.EGLImageKHR(C.EGL_NO_IMAGE_KHR)
	}
}

func (r *Renderer) ImportBitmap(img *image.RGBA) (renderer.Texture, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var id C.GLuint
	C.glGenTextures(1, &id)
	C.glBindTexture(C.GL_TEXTURE_2D, id)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MIN_FILTER, C.GL_LINEAR)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MAG_FILTER, C.GL_LINEAR)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_S, C.GL_CLAMP_TO_EDGE)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_WRAP_T, C.GL_CLAMP_TO_EDGE)
	C.glPixelStorei(C.GL_UNPACK_ALIGNMENT, 1)
	C.glTexImage2D(C.GL_TEXTURE_2D, 0, C.GL_RGBA, C.GLsizei(width), C.GLsizei(height),
		0, C.GL_RGBA, C.GL_UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	C.glBindTexture(C.GL_TEXTURE_2D, 0)

	return &glTexture{
		rend:  r,
		id:    id,
		size:  generaldata.Vector2i{X: width, Y: height},
		image: C.EGLImageKHR(C.EGL_NO_IMAGE_KHR),
	}, nil
}

func (r *Renderer) ImportDmabuf(buf *renderer.Dmabuf) (renderer.Texture, error) {
	if len(buf.Planes) == 0 {
		return nil, errors.New("dmabuf without planes")
	}
	// Single-plane import; multi-planar formats are not advertised
	plane := buf.Planes[0]

	attribs := []C.EGLint{
		C.EGL_WIDTH, C.EGLint(buf.Size.X),
		C.EGL_HEIGHT, C.EGLint(buf.Size.Y),
		C.EGL_LINUX_DRM_FOURCC_EXT, C.EGLint(buf.Format),
		C.EGL_DMA_BUF_PLANE0_FD_EXT, C.EGLint(plane.Fd),
		C.EGL_DMA_BUF_PLANE0_OFFSET_EXT, C.EGLint(plane.Offset),
		C.EGL_DMA_BUF_PLANE0_PITCH_EXT, C.EGLint(plane.Pitch),
		C.EGL_NONE,
	}

	img := C.createImageKHR(r.alloc.display, C.EGL_LINUX_DMA_BUF_EXT, nil, &attribs[0])
	if img == C.EGLImageKHR(C.EGL_NO_IMAGE_KHR) {
		return nil, eglError("eglCreateImageKHR(dmabuf)")
	}

	var id C.GLuint
	C.glGenTextures(1, &id)
	C.glBindTexture(C.GL_TEXTURE_2D, id)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MIN_FILTER, C.GL_LINEAR)
	C.glTexParameteri(C.GL_TEXTURE_2D, C.GL_TEXTURE_MAG_FILTER, C.GL_LINEAR)
	C.imageTargetTexture2D(img)
	C.glBindTexture(C.GL_TEXTURE_2D, 0)

	return &glTexture{rend: r, id: id, size: buf.Size, image: img}, nil
}

func (r *Renderer) SupportedFormats() []renderer.Format {
	return r.formats
}

func (r *Renderer) Destroy() {
	if r.program != 0 {
		C.glDeleteProgram(r.program)
		r.program = 0
	}
}
