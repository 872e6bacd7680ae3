package ocr

import "bytes"

// pageMarker is the PDF page-object marker counted by the heuristic.
var (
	pageMarker     = []byte("/Type /Page")
	pageTreeMarker = []byte("/Type /Pages")
)

// EstimatePageCount approximates the page count of a PDF by counting page
// object markers. Non-PDF bytes or a marker-free body estimate as 1 page,
// which keeps small images and scans on the whole-document path.
func EstimatePageCount(data []byte) int {
	if len(data) == 0 {
		return 1
	}
	n := bytes.Count(data, pageMarker) - bytes.Count(data, pageTreeMarker)
	if n < 1 {
		return 1
	}
	return n
}
