package decompose

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/framery/outliner/internal/domain"
	"github.com/framery/outliner/internal/domain/outline"
)

// DefaultRecordCap bounds extraction when the caller passes no cap.
const DefaultRecordCap = 200

// Service parses a traced vector document into canonical, bounded path
// records. It is stateless and safe for concurrent use.
type Service struct{}

// New creates a decomposer.
func New() *Service { return &Service{} }

// Decompose scans the document for path-data strings in document order
// and canonicalizes them under the given mode. Extraction stops as soon
// as the record cap is reached; the cap is applied while extracting, not
// by truncating afterwards. A document yielding zero records fails with
// ErrEmptyResult. A missing or malformed bounding-box declaration
// resolves to the canonical default frame.
func (s *Service) Decompose(doc []byte, mode outline.Mode, recordCap int) ([]outline.PathRecord, outline.ViewBox, error) {
	if !mode.IsValid() {
		return nil, outline.ViewBox{}, fmt.Errorf("decomposition mode %q: %w", mode, domain.ErrInvalidInput)
	}
	if recordCap <= 0 {
		recordCap = DefaultRecordCap
	}

	vb := outline.DefaultViewBox()
	vbSeen := false
	var records []outline.PathRecord

	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false
	for len(records) < recordCap {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Machine-generated documents should not be malformed; keep
			// whatever was extracted before the breakage.
			break
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !vbSeen {
			if raw, found := attr(el, "viewBox"); found {
				vb = parseViewBox(raw)
				vbSeen = true
			}
		}
		if el.Name.Local != "path" {
			continue
		}
		d, found := attr(el, "d")
		if !found || strings.TrimSpace(d) == "" {
			continue
		}
		records = appendRecords(records, d, mode, recordCap)
	}

	if len(records) == 0 {
		return nil, outline.ViewBox{}, domain.ErrEmptyResult
	}
	return records, vb, nil
}

// appendRecords canonicalizes one path-data string under the mode,
// stopping at the cap.
func appendRecords(records []outline.PathRecord, d string, mode outline.Mode, recordCap int) []outline.PathRecord {
	if mode == outline.Compound {
		// One record per d-string, verbatim: internal subpaths keep their
		// fill-rule relationship, so holes survive.
		return append(records, outline.PathRecord(strings.TrimSpace(d)))
	}
	for _, frag := range splitSubpaths(d) {
		if len(records) >= recordCap {
			break
		}
		records = append(records, outline.PathRecord(ensureClosed(frag)))
	}
	return records
}

// splitSubpaths cuts a path-data string at every subpath-start command,
// trimming whitespace and dropping empty fragments.
func splitSubpaths(d string) []string {
	var frags []string
	start := 0
	for i, r := range d {
		if i == start {
			continue
		}
		if r == 'M' || r == 'm' {
			if frag := strings.TrimSpace(d[start:i]); frag != "" {
				frags = append(frags, frag)
			}
			start = i
		}
	}
	if frag := strings.TrimSpace(d[start:]); frag != "" {
		frags = append(frags, frag)
	}
	return frags
}

// ensureClosed appends an explicit close command when the fragment does
// not already end in one, so every flattened record is an independently
// closed subpath.
func ensureClosed(frag string) string {
	if strings.HasSuffix(frag, "z") || strings.HasSuffix(frag, "Z") {
		return frag
	}
	return frag + "Z"
}

// parseViewBox extracts four finite numbers (left, top, width, height);
// anything else resolves to the canonical default.
func parseViewBox(raw string) outline.ViewBox {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ','
	})
	if len(fields) != 4 {
		return outline.DefaultViewBox()
	}
	nums := make([]float64, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return outline.DefaultViewBox()
		}
		nums[i] = v
	}
	return outline.ViewBox{Left: nums[0], Top: nums[1], Width: nums[2], Height: nums[3]}
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
