package scene

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	bimerrors "bimdex/internal/errors"
	"bimdex/internal/logging"
)

// snapshotDoc is the on-disk shape of a scene snapshot. Exporters write
// either a "root" or a "scene" top-level object.
type snapshotDoc struct {
	Generator string   `json:"generator" yaml:"generator"`
	Root      *nodeDoc `json:"root" yaml:"root"`
	Scene     *nodeDoc `json:"scene" yaml:"scene"`
}

type nodeDoc struct {
	ID          *int64            `json:"id" yaml:"id"`
	Identity    string            `json:"identity" yaml:"identity"`
	Name        string            `json:"name" yaml:"name"`
	Kind        string            `json:"kind" yaml:"kind"`
	Geometry    *geometryDoc      `json:"geometry" yaml:"geometry"`
	Material    string            `json:"material" yaml:"material"`
	Materials   []string          `json:"materials" yaml:"materials"`
	Renderable  *bool             `json:"renderable" yaml:"renderable"`
	Visible     *bool             `json:"visible" yaml:"visible"`
	Annotations map[string]string `json:"annotations" yaml:"annotations"`
	Children    []*nodeDoc        `json:"children" yaml:"children"`
}

type geometryDoc struct {
	Name        string `json:"name" yaml:"name"`
	IndexCount  int    `json:"indexCount" yaml:"indexCount"`
	VertexCount int    `json:"vertexCount" yaml:"vertexCount"`
}

// Loader reads scene snapshots from disk
type Loader struct {
	logger *logging.Logger
}

// NewLoader creates a snapshot loader
func NewLoader(logger *logging.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads, decompresses and decodes the snapshot at path and returns
// the linked scene tree. Snapshots may be JSON or YAML, optionally
// wrapped in gzip (.gz) or zstd (.zst).
func (l *Loader) Load(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, bimerrors.Newf(bimerrors.SnapshotNotFound, "snapshot not found: %s", path)
		}
		return nil, bimerrors.New(bimerrors.SnapshotInvalid, "cannot open snapshot", err)
	}
	defer f.Close()

	var reader io.Reader = f
	name := path
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, bimerrors.New(bimerrors.SnapshotInvalid, "invalid gzip stream", err)
		}
		defer gz.Close()
		reader = gz
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, bimerrors.New(bimerrors.SnapshotInvalid, "invalid zstd stream", err)
		}
		defer zr.Close()
		reader = zr
		name = strings.TrimSuffix(name, ".zst")
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, bimerrors.New(bimerrors.SnapshotInvalid, "cannot read snapshot", err)
	}

	var doc snapshotDoc
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, bimerrors.New(bimerrors.SnapshotInvalid, "cannot parse YAML snapshot", err)
		}
	} else {
		if err := json.Unmarshal(content, &doc); err != nil {
			return nil, bimerrors.New(bimerrors.SnapshotInvalid, "cannot parse JSON snapshot", err)
		}
	}

	rootDoc := doc.Root
	if rootDoc == nil {
		rootDoc = doc.Scene
	}
	if rootDoc == nil {
		return nil, bimerrors.New(bimerrors.SnapshotInvalid, "snapshot has no root node", nil)
	}

	b := &treeBuilder{}
	root := b.build(rootDoc, nil)
	if root.Kind != KindScene {
		root.Kind = KindScene
	}

	summary := Summarize(root)
	if summary.RenderableCount == 0 {
		return nil, bimerrors.New(bimerrors.SceneEmpty, "snapshot contains no renderable objects", nil)
	}

	l.logger.Debug("snapshot loaded", map[string]interface{}{
		"path":       path,
		"nodes":      summary.NodeCount,
		"renderable": summary.RenderableCount,
		"triangles":  summary.TriangleCount,
	})

	return root, nil
}

// treeBuilder converts nodeDocs into linked Nodes, assigning ordinals
// and derived identities along the way.
type treeBuilder struct {
	ordinal int64
}

func (b *treeBuilder) build(doc *nodeDoc, parent *Node) *Node {
	b.ordinal++

	node := &Node{
		Name:    doc.Name,
		Parent:  parent,
		Visible: true,
	}

	if doc.ID != nil {
		node.ID = *doc.ID
	} else {
		node.ID = b.ordinal
	}

	switch strings.ToLower(doc.Kind) {
	case "scene":
		node.Kind = KindScene
	case "group":
		node.Kind = KindGroup
	case "mesh":
		node.Kind = KindMesh
	default:
		if doc.Geometry != nil {
			node.Kind = KindMesh
		} else if parent == nil {
			node.Kind = KindScene
		} else {
			node.Kind = KindGroup
		}
	}

	if doc.Geometry != nil {
		node.GeometryName = doc.Geometry.Name
		node.IndexCount = doc.Geometry.IndexCount
		node.VertexCount = doc.Geometry.VertexCount
	}

	if doc.Material != "" {
		node.MaterialNames = append(node.MaterialNames, doc.Material)
	}
	node.MaterialNames = append(node.MaterialNames, doc.Materials...)

	if doc.Renderable != nil {
		node.Renderable = *doc.Renderable
	} else {
		node.Renderable = doc.Geometry != nil
	}

	if doc.Visible != nil {
		node.Visible = *doc.Visible
	}

	if len(doc.Annotations) > 0 {
		node.Annotations = make(map[string]string, len(doc.Annotations))
		for k, v := range doc.Annotations {
			node.Annotations[k] = v
		}
	}

	if doc.Identity != "" {
		node.Identity = doc.Identity
	} else {
		node.Identity = DeriveIdentity(node.Path(), int(b.ordinal))
	}

	for _, childDoc := range doc.Children {
		if childDoc == nil {
			continue
		}
		node.Children = append(node.Children, b.build(childDoc, node))
	}

	return node
}
