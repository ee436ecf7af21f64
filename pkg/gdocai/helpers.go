package gdocai

import (
	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/untangler/pkg/pagexml"
)

// polygonFromLayout converts a Document AI bounding poly to image coordinates.
// Absolute vertices are used when present, otherwise normalized vertices
// (0-1) are scaled to the page dimension.
func polygonFromLayout(layout *documentaipb.Document_Page_Layout, dimension *documentaipb.Document_Page_Dimension) pagexml.Polygon {
	poly := layout.GetBoundingPoly()
	if poly == nil {
		return nil
	}
	if vertices := poly.GetVertices(); len(vertices) > 0 {
		result := make(pagexml.Polygon, 0, len(vertices))
		for _, v := range vertices {
			result = append(result, pagexml.Point{X: int(v.GetX()), Y: int(v.GetY())})
		}
		return result
	}
	if dimension == nil {
		return nil
	}
	normalized := poly.GetNormalizedVertices()
	result := make(pagexml.Polygon, 0, len(normalized))
	for _, v := range normalized {
		result = append(result, pagexml.Point{
			X: int(v.GetX()*dimension.GetWidth() + 0.5),
			Y: int(v.GetY()*dimension.GetHeight() + 0.5),
		})
	}
	return result
}

// boxPolygon returns the four corners of a bounding box, clockwise from top left
func boxPolygon(b pagexml.BoundingBox) pagexml.Polygon {
	return pagexml.Polygon{
		{X: b.X, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y + b.Height},
		{X: b.X, Y: b.Y + b.Height},
	}
}
