package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/hearthview/tabletop/internal/compile"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/geom"
	"github.com/hearthview/tabletop/internal/store"
)

// Board is a parsed CUE board spec: the named scenes and tokens a
// scenario starts from. The first scene dresses the genesis scene; any
// further scenes are created alongside it.
type Board struct {
	Name   string
	Scenes []BoardScene
}

// BoardScene declares one scene's starting configuration. Nil pointer
// fields were not set in the spec and keep the engine defaults.
type BoardScene struct {
	Name      string
	GridSize  *int64
	GridShown *bool
	DarkMode  *bool
	Lighting  string // "" = unset
	Tokens    []BoardToken
}

// BoardToken declares one token. A token with a roll starts in the
// scene's initiative list.
type BoardToken struct {
	Name   string
	Label  string
	Image  string // image checksum; "" = engine default
	Point  [2]float64
	Flags  []string
	Roll   *int64
	Health *int64
}

// LoadBoard loads and parses a CUE board spec. The file must declare a
// top-level "board" struct, e.g.:
//
//	board: {
//		name: "clearing"
//		scenes: clearing: {
//			grid: 50
//			tokens: hero: {
//				label: "Hero"
//				point: [70, 140]
//				flags: ["player"]
//			}
//		}
//	}
func LoadBoard(path string) (*Board, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("board file: %w", err)
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: filepath.Dir(path)}
	instances := load.Instances([]string{filepath.Base(path)}, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instance loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building %s: %w", path, err)
	}

	boardVal := value.LookupPath(cue.ParsePath("board"))
	if !boardVal.Exists() {
		return nil, fmt.Errorf("%s: no top-level board declaration", path)
	}

	board, err := parseBoard(boardVal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return board, nil
}

// parseBoard extracts the board struct from its CUE value.
func parseBoard(v cue.Value) (*Board, error) {
	b := &Board{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, fmt.Errorf("board: name is required")
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, fmt.Errorf("board: name: %w", err)
	}
	b.Name = name

	scenesVal := v.LookupPath(cue.ParsePath("scenes"))
	if !scenesVal.Exists() {
		return nil, fmt.Errorf("board: scenes is required")
	}
	iter, err := scenesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("board: scenes: %w", err)
	}
	for iter.Next() {
		sc, err := parseScene(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		b.Scenes = append(b.Scenes, *sc)
	}
	if len(b.Scenes) == 0 {
		return nil, fmt.Errorf("board: at least one scene is required")
	}

	// Scene and token names share the scenario's "$name" namespace, so
	// they must be unique across the whole board.
	seen := map[string]bool{}
	for _, sc := range b.Scenes {
		if seen[sc.Name] {
			return nil, fmt.Errorf("board: duplicate name %q", sc.Name)
		}
		seen[sc.Name] = true
		for _, tok := range sc.Tokens {
			if seen[tok.Name] {
				return nil, fmt.Errorf("board: duplicate name %q", tok.Name)
			}
			seen[tok.Name] = true
		}
	}

	return b, nil
}

// parseScene extracts one scene, named by its CUE field label.
func parseScene(label string, v cue.Value) (*BoardScene, error) {
	sc := &BoardScene{Name: label}

	if gv := v.LookupPath(cue.ParsePath("grid")); gv.Exists() {
		n, err := gv.Int64()
		if err != nil {
			return nil, fmt.Errorf("scene %s: grid: %w", label, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("scene %s: grid must be positive, got %d", label, n)
		}
		sc.GridSize = &n
	}

	if gv := v.LookupPath(cue.ParsePath("grid_shown")); gv.Exists() {
		shown, err := gv.Bool()
		if err != nil {
			return nil, fmt.Errorf("scene %s: grid_shown: %w", label, err)
		}
		sc.GridShown = &shown
	}

	if dv := v.LookupPath(cue.ParsePath("dark_mode")); dv.Exists() {
		dark, err := dv.Bool()
		if err != nil {
			return nil, fmt.Errorf("scene %s: dark_mode: %w", label, err)
		}
		sc.DarkMode = &dark
	}

	if lv := v.LookupPath(cue.ParsePath("lighting")); lv.Exists() {
		lighting, err := lv.String()
		if err != nil {
			return nil, fmt.Errorf("scene %s: lighting: %w", label, err)
		}
		switch lighting {
		case "revealed", "dimmed", "hidden":
		default:
			return nil, fmt.Errorf("scene %s: lighting must be revealed, dimmed, or hidden, got %q", label, lighting)
		}
		sc.Lighting = lighting
	}

	if tv := v.LookupPath(cue.ParsePath("tokens")); tv.Exists() {
		iter, err := tv.Fields()
		if err != nil {
			return nil, fmt.Errorf("scene %s: tokens: %w", label, err)
		}
		for iter.Next() {
			tok, err := parseToken(iter.Label(), iter.Value())
			if err != nil {
				return nil, fmt.Errorf("scene %s: %w", label, err)
			}
			sc.Tokens = append(sc.Tokens, *tok)
		}
	}

	return sc, nil
}

// parseToken extracts one token, named by its CUE field label.
func parseToken(label string, v cue.Value) (*BoardToken, error) {
	t := &BoardToken{Name: label}

	pv := v.LookupPath(cue.ParsePath("point"))
	if !pv.Exists() {
		return nil, fmt.Errorf("token %s: point is required", label)
	}
	iter, err := pv.List()
	if err != nil {
		return nil, fmt.Errorf("token %s: point: %w", label, err)
	}
	var pts []float64
	for iter.Next() {
		f, err := iter.Value().Float64()
		if err != nil {
			return nil, fmt.Errorf("token %s: point: %w", label, err)
		}
		pts = append(pts, f)
	}
	if len(pts) != 2 {
		return nil, fmt.Errorf("token %s: point needs two coordinates, got %d", label, len(pts))
	}
	t.Point = [2]float64{pts[0], pts[1]}

	if lv := v.LookupPath(cue.ParsePath("label")); lv.Exists() {
		s, err := lv.String()
		if err != nil {
			return nil, fmt.Errorf("token %s: label: %w", label, err)
		}
		t.Label = s
	}

	if iv := v.LookupPath(cue.ParsePath("image")); iv.Exists() {
		s, err := iv.String()
		if err != nil {
			return nil, fmt.Errorf("token %s: image: %w", label, err)
		}
		t.Image = s
	}

	if fv := v.LookupPath(cue.ParsePath("flags")); fv.Exists() {
		fit, err := fv.List()
		if err != nil {
			return nil, fmt.Errorf("token %s: flags: %w", label, err)
		}
		for fit.Next() {
			s, err := fit.Value().String()
			if err != nil {
				return nil, fmt.Errorf("token %s: flags: %w", label, err)
			}
			t.Flags = append(t.Flags, s)
		}
	}

	if rv := v.LookupPath(cue.ParsePath("roll")); rv.Exists() {
		n, err := rv.Int64()
		if err != nil {
			return nil, fmt.Errorf("token %s: roll: %w", label, err)
		}
		t.Roll = &n
	}

	if hv := v.LookupPath(cue.ParsePath("health")); hv.Exists() {
		n, err := hv.Int64()
		if err != nil {
			return nil, fmt.Errorf("token %s: health: %w", label, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("token %s: health must be non-negative, got %d", label, n)
		}
		t.Health = &n
	}

	return t, nil
}

// Edits builds the setup batch against a snapshot that already carries a
// genesis state. The first scene configures the window's current scene;
// later scenes are fresh entities hung off the root. The returned map
// names every board entity so callers can resolve "$name" references
// after the commit.
func (b *Board) Edits(snap *store.Snapshot) ([]fact.Edit, map[string]fact.EntityID, error) {
	root, ok := snap.Ident(fact.IdentRoot)
	if !ok {
		return nil, nil, fmt.Errorf("board %s: snapshot has no root entity", b.Name)
	}
	local, ok := snap.Ident(fact.IdentLocal)
	if !ok {
		return nil, nil, fmt.Errorf("board %s: snapshot has no local entity", b.Name)
	}
	cam, ok := snap.Ref(local, fact.AttrLocalCamera)
	if !ok {
		return nil, nil, fmt.Errorf("board %s: local has no camera", b.Name)
	}
	home, ok := snap.Ref(cam, fact.AttrCameraScene)
	if !ok {
		return nil, nil, fmt.Errorf("board %s: camera looks at no scene", b.Name)
	}

	var arena fact.Arena
	ids := make(map[string]fact.EntityID)
	var edits []fact.Edit

	for i, sc := range b.Scenes {
		var scene fact.EntityID = home
		if i > 0 {
			ph := arena.Next()
			scene = ph
			edits = append(edits, fact.Assert(root, fact.AttrRootScenes, fact.RefTo(ph)))
		}
		ids[sc.Name] = scene
		edits = append(edits, sceneEdits(scene, sc, i > 0)...)

		for _, tok := range sc.Tokens {
			ph := arena.Next()
			ids[tok.Name] = ph
			edits = append(edits, tokenEdits(scene, ph, tok)...)
		}
	}

	return edits, ids, nil
}

// sceneEdits asserts a scene's declared fields. Fresh scenes also get the
// engine defaults for anything the board leaves unset, matching what
// scenes/create would produce; the genesis scene already has them.
func sceneEdits(scene fact.EntityID, sc BoardScene, withDefaults bool) []fact.Edit {
	var edits []fact.Edit
	if sc.GridSize != nil {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneGridSize, fact.Int(*sc.GridSize)))
	} else if withDefaults {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneGridSize, fact.Int(compile.DefaultGridSize)))
	}
	if sc.GridShown != nil {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneShowGrid, fact.Bool(*sc.GridShown)))
	} else if withDefaults {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneShowGrid, fact.Bool(true)))
	}
	if sc.Lighting != "" {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneLighting, fact.String(sc.Lighting)))
	} else if withDefaults {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneLighting, fact.String(compile.DefaultLighting)))
	}
	if sc.DarkMode != nil {
		edits = append(edits, fact.Assert(scene, fact.AttrSceneDarkMode, fact.Bool(*sc.DarkMode)))
	}
	return edits
}

// tokenEdits asserts one token and hangs it off its scene. A declared
// roll also enrolls the token in the scene's initiative list.
func tokenEdits(scene, tok fact.EntityID, t BoardToken) []fact.Edit {
	image := t.Image
	if image == "" {
		image = fact.DefaultImage
	}
	edits := []fact.Edit{
		fact.Assert(tok, fact.AttrTokenPoint, fact.Point(geom.Round(t.Point[0]), geom.Round(t.Point[1]))),
		fact.Assert(tok, fact.AttrTokenImage, fact.String(image)),
	}
	if t.Label != "" {
		edits = append(edits, fact.Assert(tok, fact.AttrTokenLabel, fact.String(t.Label)))
	}
	for _, flag := range t.Flags {
		edits = append(edits, fact.Assert(tok, fact.AttrTokenFlags, fact.String(flag)))
	}
	edits = append(edits, fact.Assert(scene, fact.AttrSceneTokens, fact.RefTo(tok)))
	if t.Roll != nil {
		edits = append(edits,
			fact.Assert(scene, fact.AttrSceneInitiative, fact.RefTo(tok)),
			fact.Assert(tok, fact.AttrTokenRoll, fact.Int(*t.Roll)),
		)
	}
	if t.Health != nil {
		edits = append(edits, fact.Assert(tok, fact.AttrTokenHealth, fact.Int(*t.Health)))
	}
	return edits
}
