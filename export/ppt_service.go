package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ppt "github.com/VantageDataChat/GoPPT"
	"github.com/google/uuid"

	"slidesmith/deck"
)

// PPTService renders presentations to pptx using GoPPT (pure Go, zero dependencies).
type PPTService struct {
	OutputDir string
}

func NewPPTService(outputDir string) *PPTService {
	return &PPTService{OutputDir: outputDir}
}

// 16:9 widescreen layout constants
const (
	emuPerInch = 914400

	marginLeft = int64(0.4 * emuPerInch)

	contentWidth = int64(9.2 * emuPerInch)
	slideWidth   = int64(10.0 * emuPerInch)
	slideHeight  = int64(5.625 * emuPerInch)

	// font sizes (pt)
	fontTitle    = 36
	fontSubtitle = 20
	fontHeading  = 28
	fontBody     = 16
	fontSmall    = 12
	fontFooter   = 9
)

const (
	accentColor = "FF1E40AF"
	mutedColor  = "FF64748B"
	bodyColor   = "FF333333"
	barColor    = "FF3B82F6"
)

// helper: create a solid fill
func solidFill(argb string) *ppt.Fill {
	return ppt.NewFill().SetSolid(ppt.NewColor(argb))
}

// helper: set paragraph alignment to center
func alignCenter(p *ppt.Paragraph) {
	p.SetAlignment(ppt.NewAlignment().SetHorizontal(ppt.HorizontalCenter))
}

// helper: set paragraph alignment to right
func alignRight(p *ppt.Paragraph) {
	p.SetAlignment(ppt.NewAlignment().SetHorizontal(ppt.HorizontalRight))
}

// CreatePresentation renders generated slide content to a pptx file on disk
// and returns the full path. images is aligned with slides and may contain
// nil entries when no photo was found for that slide.
func (s *PPTService) CreatePresentation(slides []deck.SlideRecord, topic string, images [][]byte) (string, error) {
	p := ppt.New()
	p.GetDocumentProperties().Title = topic
	p.GetDocumentProperties().Creator = "SlideSmith"

	s.addTitleSlide(p, topic)

	for i, sl := range slides {
		var img []byte
		if i < len(images) {
			img = images[i]
		}
		s.addContentSlide(p, sl, img)
	}

	s.addEndingSlide(p)

	data, err := writePPTX(p)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%s_%s.pptx",
		sanitizeTopic(topic), time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(s.OutputDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save pptx: %w", err)
	}
	return path, nil
}

func writePPTX(p *ppt.Presentation) ([]byte, error) {
	w, err := ppt.NewWriter(p, ppt.WriterPowerPoint2007)
	if err != nil {
		return nil, fmt.Errorf("failed to create pptx writer: %w", err)
	}
	var buf bytes.Buffer
	if err := w.(*ppt.PPTXWriter).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pptx: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeTopic reduces a topic to a filesystem-safe prefix.
func sanitizeTopic(topic string) string {
	var b strings.Builder
	for _, r := range topic {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.Trim(out, "_")
	if out == "" {
		out = "presentation"
	}
	runes := []rune(out)
	if len(runes) > 50 {
		out = string(runes[:50])
	}
	return out
}

// addTitleSlide builds the opening slide. Title and subtitle both sit in the
// upper half of the slide so parsing recovers them as title elements.
func (s *PPTService) addTitleSlide(p *ppt.Presentation, topic string) {
	slide := p.GetActiveSlide()

	topBar := slide.CreateRichTextShape()
	topBar.SetOffsetX(0).SetOffsetY(0)
	topBar.SetWidth(slideWidth).SetHeight(int64(0.15 * emuPerInch))
	topBar.SetFill(solidFill(barColor))

	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(marginLeft).SetOffsetY(int64(1.6 * emuPerInch))
	titleShape.SetWidth(contentWidth).SetHeight(int64(1.0 * emuPerInch))
	tr := titleShape.CreateTextRun(topic)
	tr.GetFont().SetSize(fontTitle).SetBold(true).SetColor(ppt.NewColor(accentColor))
	alignCenter(titleShape.GetActiveParagraph())

	subShape := slide.CreateRichTextShape()
	subShape.SetOffsetX(int64(1.0 * emuPerInch)).SetOffsetY(int64(2.8 * emuPerInch))
	subShape.SetWidth(int64(8.0 * emuPerInch)).SetHeight(int64(0.6 * emuPerInch))
	subTr := subShape.CreateTextRun("AI Generated Presentation")
	subTr.GetFont().SetSize(fontSubtitle).SetColor(ppt.NewColor(mutedColor))
	alignCenter(subShape.GetActiveParagraph())

	tsShape := slide.CreateRichTextShape()
	tsShape.SetOffsetX(marginLeft).SetOffsetY(int64(4.0 * emuPerInch))
	tsShape.SetWidth(contentWidth).SetHeight(int64(0.4 * emuPerInch))
	tsTr := tsShape.CreateTextRun(time.Now().Format("January 2, 2006"))
	tsTr.GetFont().SetSize(fontSmall).SetColor(ppt.NewColor("FF94A3B8"))
	alignCenter(tsShape.GetActiveParagraph())

	bottomBar := slide.CreateRichTextShape()
	bottomBar.SetOffsetX(0).SetOffsetY(int64(5.5 * emuPerInch))
	bottomBar.SetWidth(slideWidth).SetHeight(int64(0.125 * emuPerInch))
	bottomBar.SetFill(solidFill(barColor))
}

// addContentSlide renders one generated slide: header, bullet body and an
// optional photo on the right.
func (s *PPTService) addContentSlide(p *ppt.Presentation, sl deck.SlideRecord, image []byte) {
	slide := p.CreateSlide()

	topBar := slide.CreateRichTextShape()
	topBar.SetOffsetX(0).SetOffsetY(0)
	topBar.SetWidth(slideWidth).SetHeight(int64(0.08 * emuPerInch))
	topBar.SetFill(solidFill(barColor))

	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(marginLeft).SetOffsetY(int64(0.3 * emuPerInch))
	titleShape.SetWidth(contentWidth).SetHeight(int64(0.6 * emuPerInch))
	tr := titleShape.CreateTextRun(sl.Title)
	tr.GetFont().SetSize(fontHeading).SetBold(true).SetColor(ppt.NewColor(accentColor))

	bodyWidth := contentWidth
	if image != nil {
		bodyWidth = int64(5.4 * emuPerInch)
	}

	if len(sl.Content) > 0 {
		bodyShape := slide.CreateRichTextShape()
		bodyShape.SetOffsetX(marginLeft).SetOffsetY(int64(1.2 * emuPerInch))
		bodyShape.SetWidth(bodyWidth).SetHeight(int64(3.9 * emuPerInch))

		for i, item := range sl.Content {
			if i > 0 {
				bodyShape.CreateParagraph()
			}
			itemTr := bodyShape.CreateTextRun("• " + item)
			itemTr.GetFont().SetSize(fontBody).SetColor(ppt.NewColor(bodyColor))
		}
	}

	if image != nil {
		imgShape := slide.CreateDrawingShape()
		imgShape.SetImageData(image, sniffMIME(image))
		imgShape.SetOffsetX(int64(6.1 * emuPerInch)).SetOffsetY(int64(1.2 * emuPerInch))
		imgShape.SetWidth(int64(3.5 * emuPerInch)).SetHeight(int64(3.5 * emuPerInch))
	}
}

// addEndingSlide builds the closing slide. Text sits below 2.0in so it reads
// back as body text rather than a title.
func (s *PPTService) addEndingSlide(p *ppt.Presentation) {
	slide := p.CreateSlide()

	topBar := slide.CreateRichTextShape()
	topBar.SetOffsetX(0).SetOffsetY(0)
	topBar.SetWidth(slideWidth).SetHeight(int64(0.15 * emuPerInch))
	topBar.SetFill(solidFill(barColor))

	thankShape := slide.CreateRichTextShape()
	thankShape.SetOffsetX(int64(1.0 * emuPerInch)).SetOffsetY(int64(2.2 * emuPerInch))
	thankShape.SetWidth(int64(8.0 * emuPerInch)).SetHeight(int64(1.0 * emuPerInch))
	thankTr := thankShape.CreateTextRun("Thank You")
	thankTr.GetFont().SetSize(fontTitle).SetBold(true).SetColor(ppt.NewColor(accentColor))
	alignCenter(thankShape.GetActiveParagraph())

	subShape := slide.CreateRichTextShape()
	subShape.SetOffsetX(int64(1.0 * emuPerInch)).SetOffsetY(int64(3.4 * emuPerInch))
	subShape.SetWidth(int64(8.0 * emuPerInch)).SetHeight(int64(0.5 * emuPerInch))
	subTr := subShape.CreateTextRun("Generated with SlideSmith")
	subTr.GetFont().SetSize(18).SetColor(ppt.NewColor(mutedColor))
	alignCenter(subShape.GetActiveParagraph())

	bottomBar := slide.CreateRichTextShape()
	bottomBar.SetOffsetX(0).SetOffsetY(int64(5.5 * emuPerInch))
	bottomBar.SetWidth(slideWidth).SetHeight(int64(0.125 * emuPerInch))
	bottomBar.SetFill(solidFill(barColor))
}

// RenderModel rebuilds a pptx from an edited document model, honoring
// per-element positions and styles.
func (s *PPTService) RenderModel(model *deck.DocumentModel, topic string) ([]byte, error) {
	p := ppt.New()
	p.GetDocumentProperties().Title = topic
	p.GetDocumentProperties().Creator = "SlideSmith"

	for i, sl := range model.Slides {
		var slide *ppt.Slide
		if i == 0 {
			slide = p.GetActiveSlide()
		} else {
			slide = p.CreateSlide()
		}
		s.renderRichSlide(slide, sl)
	}

	return writePPTX(p)
}

func (s *PPTService) renderRichSlide(slide *ppt.Slide, sl deck.RichSlide) {
	// GoPPT has no slide background API, so a full-slide filled shape
	// stands in for non-white backgrounds.
	bgColor := sl.Background.Color
	darkBg := bgColor != "" && !strings.EqualFold(bgColor, "#ffffff")
	if darkBg {
		bg := slide.CreateRichTextShape()
		bg.SetOffsetX(0).SetOffsetY(0)
		bg.SetWidth(slideWidth).SetHeight(slideHeight)
		bg.SetFill(solidFill(argbFromHex(bgColor)))
	}

	for _, el := range sl.Elements {
		switch el.Type {
		case deck.ElementTitle, deck.ElementText:
			s.renderTextElement(slide, el, darkBg, false)
		case deck.ElementBulletList:
			s.renderTextElement(slide, el, darkBg, true)
		case deck.ElementImage:
			s.renderImageElement(slide, el)
		}
	}
}

func (s *PPTService) renderTextElement(slide *ppt.Slide, el deck.Element, darkBg, bullets bool) {
	shape := slide.CreateRichTextShape()
	shape.SetOffsetX(int64(el.Position.Left * emuPerInch)).SetOffsetY(int64(el.Position.Top * emuPerInch))
	shape.SetWidth(int64(el.Position.Width * emuPerInch)).SetHeight(int64(el.Position.Height * emuPerInch))

	size := fontBody
	bold := false
	color := bodyColor
	align := ""
	if el.Type == deck.ElementTitle {
		size = 32
		bold = true
	}
	if el.Style != nil {
		if el.Style.FontSize > 0 {
			size = el.Style.FontSize
		}
		if el.Style.FontWeight == "bold" {
			bold = true
		}
		if el.Style.Color != "" {
			color = argbFromHex(el.Style.Color)
		} else if darkBg {
			color = "FFFFFFFF"
		}
		align = el.Style.Alignment
	} else if darkBg {
		color = "FFFFFFFF"
	}

	lines := []string{el.Content}
	if bullets {
		lines = make([]string, len(el.Items))
		for i, item := range el.Items {
			lines[i] = "• " + item
		}
	}

	for i, line := range lines {
		if i > 0 {
			shape.CreateParagraph()
		}
		tr := shape.CreateTextRun(line)
		f := tr.GetFont().SetSize(size).SetColor(ppt.NewColor(color))
		if bold {
			f.SetBold(true)
		}
		switch align {
		case "center":
			alignCenter(shape.GetActiveParagraph())
		case "right":
			alignRight(shape.GetActiveParagraph())
		}
	}
}

func (s *PPTService) renderImageElement(slide *ppt.Slide, el deck.Element) {
	data, mime, ok := decodeDataURI(el.Src)
	if !ok {
		return
	}
	imgShape := slide.CreateDrawingShape()
	imgShape.SetImageData(data, mime)
	imgShape.SetOffsetX(int64(el.Position.Left * emuPerInch)).SetOffsetY(int64(el.Position.Top * emuPerInch))
	imgShape.SetWidth(int64(el.Position.Width * emuPerInch)).SetHeight(int64(el.Position.Height * emuPerInch))
}

// decodeDataURI splits a data: URI into raw bytes and MIME type.
func decodeDataURI(src string) ([]byte, string, bool) {
	if !strings.HasPrefix(src, "data:") {
		return nil, "", false
	}
	parts := strings.SplitN(src, ",", 2)
	if len(parts) != 2 {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, "", false
	}
	mime := "image/png"
	if strings.Contains(parts[0], "image/jpeg") {
		mime = "image/jpeg"
	} else if strings.Contains(parts[0], "image/gif") {
		mime = "image/gif"
	}
	return data, mime, true
}

// argbFromHex converts "#rrggbb" to GoPPT's AARRGGBB form.
func argbFromHex(hex string) string {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return "FF333333"
	}
	return "FF" + strings.ToUpper(h)
}

// sniffMIME detects an image MIME type from its magic bytes.
func sniffMIME(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case len(data) >= 3 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F':
		return "image/gif"
	default:
		return "image/png"
	}
}
