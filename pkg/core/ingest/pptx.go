package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const drawingMLNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractSlides reads every slide of a .pptx deck in slide-number order.
func extractSlides(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: open pptx: %v", ErrUnreadable, err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var sb strings.Builder
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("open slide %d: %w", s.num, err)
		}
		text, err := slideText(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parse slide %d: %w", s.num, err)
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// slideText walks the slide XML in document order. Grouped shapes (p:grpSp)
// nest arbitrarily deep, so the walk is token based rather than struct based:
// every a:p paragraph becomes a line wherever it sits, and a:tbl rows become
// " | " separated lines.
func slideText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		lines      []string
		para       strings.Builder
		cell       []string
		row        []string
		inText     bool
		tableDepth int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != drawingMLNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "br":
				para.WriteString(" ")
			case "tbl":
				tableDepth++
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}

		case xml.EndElement:
			if t.Name.Space != drawingMLNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				para.Reset()
				if text == "" {
					continue
				}
				if tableDepth > 0 {
					cell = append(cell, text)
				} else {
					lines = append(lines, text)
				}
			case "tc":
				row = append(row, strings.Join(cell, " "))
				cell = nil
			case "tr":
				if strings.TrimSpace(strings.Join(row, "")) != "" {
					lines = append(lines, strings.Join(row, " | "))
				}
				row = nil
			case "tbl":
				tableDepth--
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
