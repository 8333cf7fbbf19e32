package eotf

import (
	"embed"
	"fmt"
)

//go:embed shaders/*.vert shaders/*.frag
var shaderFS embed.FS

// Profile selects the GLSL dialect of the planar decode program.
type Profile int

const (
	// ProfileGLSL130 is the full variant (switch statement, builtin isnan).
	ProfileGLSL130 Profile = iota
	// ProfileGLSL120 is the reduced variant for legacy OpenGL 2.1 contexts.
	ProfileGLSL120
)

func (p Profile) String() string {
	switch p {
	case ProfileGLSL130:
		return "glsl130"
	case ProfileGLSL120:
		return "glsl120"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// ParseProfile accepts "glsl130" or "glsl120".
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "", "glsl130":
		return ProfileGLSL130, nil
	case "glsl120":
		return ProfileGLSL120, nil
	}
	return 0, fmt.Errorf("eotf: unknown shader profile %q", s)
}

// Program is the source and uniform table of one movie's decode program.
type Program struct {
	Profile  Profile
	Vertex   string
	Fragment string
	Params   Params
}

// Sources returns the vertex and fragment shader sources for profile.
func Sources(profile Profile) (vertex, fragment string, err error) {
	v, err := shaderFS.ReadFile("shaders/planar_yuv.vert")
	if err != nil {
		return "", "", err
	}
	name := "shaders/planar_yuv_130.frag"
	if profile == ProfileGLSL120 {
		name = "shaders/planar_yuv_120.frag"
	}
	f, err := shaderFS.ReadFile(name)
	if err != nil {
		return "", "", err
	}
	return string(v), string(f), nil
}

// NewProgram bundles the sources for profile with params.
func NewProgram(profile Profile, params Params) (*Program, error) {
	v, f, err := Sources(profile)
	if err != nil {
		return nil, fmt.Errorf("eotf: load shader sources: %w", err)
	}
	return &Program{Profile: profile, Vertex: v, Fragment: f, Params: params}, nil
}
