// Package webanno turns untangled annotations into W3C Web Annotations.
//
// Every annotation gets text targets into both projections of the inventory
// and, when the scan has an IIIF image, image and canvas targets built from
// the annotation's polygons.
package webanno

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/gardar/untangler/pkg/untangle"
)

// URNPrefix starts every identifier the builder mints
const URNPrefix = "urn:globalise"

// Group is the body type a set of web annotations is stored under
type Group string

const (
	GroupFile       Group = "na_file"
	GroupPage       Group = "px_page"
	GroupTextRegion Group = "px_textregion"
	GroupTextLine   Group = "px_textline"
)

// Groups lists the groups in output order
var Groups = []Group{GroupFile, GroupPage, GroupTextRegion, GroupTextLine}

var bodyTypes = map[untangle.Type]struct {
	group Group
	name  string
}{
	untangle.TypeFile:       {GroupFile, "na:File"},
	untangle.TypePage:       {GroupPage, "px:Page"},
	untangle.TypeTextRegion: {GroupTextRegion, "px:TextRegion"},
	untangle.TypeTextLine:   {GroupTextLine, "px:TextLine"},
}

var annoContext = []any{
	"http://www.w3.org/ns/anno.jsonld",
	map[string]string{
		"na":   "https://knaw-huc.github.io/ns/nationaal-archief#",
		"px":   "https://knaw-huc.github.io/ns/pagexml#",
		"tt":   "https://knaw-huc.github.io/ns/textrepo#",
		"iiif": "http://iiif.io/api/image/3#",
	},
}

// Generator identifies the software that produced the annotations
type Generator struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"-"`
	Name string `json:"name" yaml:"name"`
}

// Body carries the annotation type and its metadata
type Body struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WebAnnotation is one W3C Web Annotation
type WebAnnotation struct {
	Context   []any     `json:"@context"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Generated string    `json:"generated"`
	Generator Generator `json:"generator"`
	Body      Body      `json:"body"`
	Target    []Target  `json:"target"`
}

// Config holds the run-wide values that end up in every annotation
type Config struct {
	TextRepoBaseURL   string
	PhysicalVersionID string // Version of the physical segmented text
	LogicalVersionID  string // Version of the logical segmented text
	Generator         Generator
	Generated         time.Time
}

// Builder assembles web annotations for one untangled inventory
type Builder struct {
	cfg   Config
	res   *untangle.Result
	scans map[string]untangle.ScanInfo
}

// NewBuilder prepares a builder over res
func NewBuilder(cfg Config, res *untangle.Result) *Builder {
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "Software"
	}
	scans := make(map[string]untangle.ScanInfo, len(res.Scans))
	for _, s := range res.Scans {
		scans[s.PageID] = s
	}
	return &Builder{cfg: cfg, res: res, scans: scans}
}

// Build converts every annotation of the inventory, grouped by body type.
// Within a group the annotations keep the order of the result.
func (b *Builder) Build() (map[Group][]WebAnnotation, error) {
	groups := make(map[Group][]WebAnnotation, len(Groups))
	for _, a := range b.res.Annotations {
		wa, err := b.Annotation(a)
		if err != nil {
			return nil, err
		}
		group := bodyTypes[a.Type].group
		groups[group] = append(groups[group], wa)
	}
	return groups, nil
}

// Annotation converts a single annotation
func (b *Builder) Annotation(a untangle.Annotation) (WebAnnotation, error) {
	bt, ok := bodyTypes[a.Type]
	if !ok {
		return WebAnnotation{}, fmt.Errorf("annotation %s: unknown type %q", a.ID, a.Type)
	}
	body := Body{
		ID:       BodyID(a),
		Type:     bt.name,
		Metadata: bodyMetadata(a),
	}
	return WebAnnotation{
		Context:   annoContext,
		ID:        AnnotationID(body.ID, body.Type),
		Type:      "Annotation",
		Generated: b.cfg.Generated.UTC().Format(time.RFC3339),
		Generator: b.cfg.Generator,
		Body:      body,
		Target:    b.Targets(a),
	}, nil
}

// URN builds an identifier from a document id and optional suffixes
// Example: urn:globalise:NL-HaNA_1.04.02_1092_0017:region_3
func URN(documentID string, suffix ...string) string {
	urn := URNPrefix + ":" + documentID
	for _, s := range suffix {
		urn += ":" + s
	}
	return urn
}

// BodyID is the URN of the thing an annotation describes
func BodyID(a untangle.Annotation) string {
	switch a.Type {
	case untangle.TypeFile, untangle.TypePage:
		return URN(a.ID)
	default:
		return URN(a.PageID, a.ID)
	}
}

// AnnotationID derives a stable annotation URN from the body it carries
func AnnotationID(bodyID, bodyType string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(bodyType+" "+bodyID))
	return URN("annotation", id.String())
}

// bodyMetadata copies the metadata, turning page and region references into URNs
func bodyMetadata(a untangle.Annotation) map[string]any {
	if len(a.Metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(a.Metadata))
	for k, v := range a.Metadata {
		if s, ok := v.(string); ok {
			switch k {
			case "prevPage", "nextPage":
				v = URN(s)
			case "textRegionId":
				v = URN(a.PageID, s)
			}
		}
		out[k] = v
	}
	return out
}

// Encode writes annotations as an indented JSON array. Markup in selector
// values is written as is.
func Encode(w io.Writer, anns []WebAnnotation) error {
	if anns == nil {
		anns = []WebAnnotation{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(anns)
}

// Marshal returns the encoded form of anns
func Marshal(anns []WebAnnotation) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, anns); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
