package export

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"slidesmith/deck"
)

// PPTXParser reads a pptx archive back into an editable document model.
// It only understands the subset of DrawingML the renderer emits plus the
// common shapes real decks contain; anything it cannot read is skipped.
type PPTXParser struct{}

func NewPPTXParser() *PPTXParser {
	return &PPTXParser{}
}

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// raw XML mapping for the slide part

type xmlSlide struct {
	CSld struct {
		Bg struct {
			BgPr struct {
				SolidFill struct {
					SrgbClr struct {
						Val string `xml:"val,attr"`
					} `xml:"srgbClr"`
				} `xml:"solidFill"`
			} `xml:"bgPr"`
		} `xml:"bg"`
		SpTree struct {
			Shapes []xmlShape `xml:"sp"`
			Pics   []xmlPic   `xml:"pic"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type xmlXfrm struct {
	Off struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"off"`
	Ext struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"ext"`
}

type xmlShape struct {
	SpPr struct {
		Xfrm xmlXfrm `xml:"xfrm"`
	} `xml:"spPr"`
	TxBody struct {
		Paragraphs []xmlParagraph `xml:"p"`
	} `xml:"txBody"`
}

type xmlParagraph struct {
	PPr struct {
		Algn string `xml:"algn,attr"`
	} `xml:"pPr"`
	Runs []xmlRun `xml:"r"`
}

type xmlRun struct {
	RPr struct {
		Sz        int    `xml:"sz,attr"`
		B         string `xml:"b,attr"`
		SolidFill struct {
			SrgbClr struct {
				Val string `xml:"val,attr"`
			} `xml:"srgbClr"`
		} `xml:"solidFill"`
	} `xml:"rPr"`
	Text string `xml:"t"`
}

type xmlPic struct {
	BlipFill struct {
		Blip struct {
			Embed string `xml:"embed,attr"`
		} `xml:"blip"`
	} `xml:"blipFill"`
	SpPr struct {
		Xfrm xmlXfrm `xml:"xfrm"`
	} `xml:"spPr"`
}

type xmlRelationships struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// ParseFile opens a pptx on disk and converts it to a document model.
func (p *PPTXParser) ParseFile(pptPath, title string) (*deck.DocumentModel, error) {
	data, err := os.ReadFile(pptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pptx: %w", err)
	}
	return p.Parse(data, title)
}

// Parse converts pptx bytes to a document model.
func (p *PPTXParser) Parse(data []byte, title string) (*deck.DocumentModel, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a valid pptx archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	type numbered struct {
		num  int
		name string
	}
	var slideFiles []numbered
	for name := range files {
		m := slidePathRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slideFiles = append(slideFiles, numbered{num: n, name: name})
	}
	sort.Slice(slideFiles, func(i, j int) bool { return slideFiles[i].num < slideFiles[j].num })

	model := &deck.DocumentModel{
		Metadata: deck.DocumentMetadata{
			Title:      title,
			SlideCount: len(slideFiles),
			CreatedAt:  time.Now().Format(time.RFC3339),
			Theme:      "gamma_style",
		},
	}

	for i, sf := range slideFiles {
		slide, err := p.parseSlide(files, sf.name, sf.num, i)
		if err != nil {
			log.Printf("[PARSER] skipping slide %d: %v", sf.num, err)
			continue
		}
		model.Slides = append(model.Slides, slide)
	}

	deck.Renumber(model)
	return model, nil
}

func (p *PPTXParser) parseSlide(files map[string]*zip.File, name string, num, index int) (deck.RichSlide, error) {
	var slide deck.RichSlide

	raw, err := readZipFile(files[name])
	if err != nil {
		return slide, err
	}
	var xs xmlSlide
	if err := xml.Unmarshal(raw, &xs); err != nil {
		return slide, fmt.Errorf("slide xml: %w", err)
	}

	rels := p.slideRels(files, num)

	slide.ID = fmt.Sprintf("slide_%d", num)
	slide.SlideNumber = index + 1
	slide.LayoutType = deck.LayoutContent
	if index == 0 {
		slide.LayoutType = deck.LayoutTitle
	}

	slide.Background = deck.Background{Type: "color", Color: "#ffffff"}
	if v := xs.CSld.Bg.BgPr.SolidFill.SrgbClr.Val; v != "" {
		slide.Background.Color = "#" + strings.ToLower(v)
	}

	for _, sp := range xs.CSld.SpTree.Shapes {
		el, ok := p.shapeToElement(sp, index)
		if ok {
			slide.Elements = append(slide.Elements, el)
		}
	}
	for _, pic := range xs.CSld.SpTree.Pics {
		el, ok := p.picToElement(files, rels, pic)
		if ok {
			slide.Elements = append(slide.Elements, el)
		}
	}

	return slide, nil
}

// shapeToElement classifies a text shape as title, bullet list or plain text.
// A shape whose first paragraph starts with a bullet marker becomes a bullet
// list; otherwise position decides: on the first slide anything above 3.0in
// is a title, on later slides the cutoff is 2.0in.
func (p *PPTXParser) shapeToElement(sp xmlShape, slideIndex int) (deck.Element, bool) {
	pos := emuPosition(sp.SpPr.Xfrm)

	var items []string
	var textLines []string
	bulletMode := false
	for _, para := range sp.TxBody.Paragraphs {
		var sb strings.Builder
		for _, r := range para.Runs {
			sb.WriteString(r.Text)
		}
		line := sb.String()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "•") || strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") {
			bulletMode = true
			items = append(items, strings.TrimLeft(trimmed, "•-* "))
		} else if bulletMode {
			// continuation line inside a bullet body
			items = append(items, trimmed)
		} else {
			textLines = append(textLines, trimmed)
		}
	}

	if bulletMode {
		el := deck.Element{
			Type:     deck.ElementBulletList,
			Items:    items,
			Position: pos,
			Style:    p.runStyle(sp, false),
		}
		return el, true
	}

	if len(textLines) == 0 {
		return deck.Element{}, false
	}

	cutoff := 2.0
	if slideIndex == 0 {
		cutoff = 3.0
	}
	elType := deck.ElementText
	if pos.Top < cutoff {
		elType = deck.ElementTitle
	}

	el := deck.Element{
		Type:     elType,
		Content:  strings.Join(textLines, "\n"),
		Position: pos,
		Style:    p.runStyle(sp, elType == deck.ElementTitle),
	}
	return el, true
}

// runStyle derives element style from the first text run, falling back to
// the document defaults (16pt body, 32pt title, #333333, centered titles).
func (p *PPTXParser) runStyle(sp xmlShape, isTitle bool) *deck.Style {
	style := &deck.Style{
		FontSize:   16,
		FontWeight: "normal",
		Color:      "#333333",
		Alignment:  "left",
	}
	if isTitle {
		style.FontSize = 32
		style.FontWeight = "bold"
		style.Alignment = "center"
	}

	for _, para := range sp.TxBody.Paragraphs {
		switch para.PPr.Algn {
		case "ctr":
			style.Alignment = "center"
		case "r":
			style.Alignment = "right"
		case "l":
			style.Alignment = "left"
		}
		for _, r := range para.Runs {
			if r.RPr.Sz > 0 {
				style.FontSize = r.RPr.Sz / 100
			}
			if r.RPr.B == "1" || r.RPr.B == "true" {
				style.FontWeight = "bold"
			}
			if v := r.RPr.SolidFill.SrgbClr.Val; v != "" {
				style.Color = "#" + strings.ToLower(v)
			}
			return style
		}
	}
	return style
}

func (p *PPTXParser) picToElement(files map[string]*zip.File, rels map[string]string, pic xmlPic) (deck.Element, bool) {
	target, ok := rels[pic.BlipFill.Blip.Embed]
	if !ok {
		return deck.Element{}, false
	}
	mediaPath := path.Clean(path.Join("ppt/slides", target))
	f, ok := files[mediaPath]
	if !ok {
		return deck.Element{}, false
	}
	data, err := readZipFile(f)
	if err != nil {
		log.Printf("[PARSER] failed to read %s: %v", mediaPath, err)
		return deck.Element{}, false
	}

	mime := sniffMIME(data)
	el := deck.Element{
		Type:     deck.ElementImage,
		Src:      "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
		Alt:      path.Base(mediaPath),
		Position: emuPosition(pic.SpPr.Xfrm),
	}
	return el, true
}

// slideRels loads the relationship map for one slide (rId to media target).
func (p *PPTXParser) slideRels(files map[string]*zip.File, num int) map[string]string {
	rels := make(map[string]string)
	relName := fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", num)
	f, ok := files[relName]
	if !ok {
		return rels
	}
	raw, err := readZipFile(f)
	if err != nil {
		return rels
	}
	var xr xmlRelationships
	if err := xml.Unmarshal(raw, &xr); err != nil {
		return rels
	}
	for _, r := range xr.Relationships {
		rels[r.ID] = r.Target
	}
	return rels
}

func emuPosition(x xmlXfrm) deck.Position {
	return deck.Position{
		Left:   float64(x.Off.X) / emuPerInch,
		Top:    float64(x.Off.Y) / emuPerInch,
		Width:  float64(x.Ext.CX) / emuPerInch,
		Height: float64(x.Ext.CY) / emuPerInch,
	}
}

func readZipFile(f *zip.File) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("missing archive entry")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
