package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"slidesmith/deck"
)

// PDFService handles PDF export using maroto.
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// ExportModel renders an edited document model to a PDF. Each slide becomes
// a section with its title, text and bullets; embedded images are placed
// below the text.
func (s *PDFService) ExportModel(model *deck.DocumentModel, topic string) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		WithDefaultFont(&props.Font{
			Family: fontfamily.Arial,
			Size:   10,
		}).
		Build()

	m := maroto.New(cfg)

	s.addCoverPage(m, topic)

	for _, sl := range model.Slides {
		s.addSlide(m, sl)
	}

	document, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return document.GetBytes(), nil
}

func (s *PDFService) addCoverPage(m core.Maroto, topic string) {
	m.AddRow(30)
	m.AddRow(20,
		col.New(12).Add(
			text.New(topic, props.Text{
				Size:  24,
				Style: fontstyle.Bold,
				Align: align.Center,
				Color: &props.Color{Red: 30, Green: 64, Blue: 175},
			}),
		),
	)
	m.AddRow(10,
		col.New(12).Add(
			text.New("AI Generated Presentation", props.Text{
				Size:  14,
				Align: align.Center,
				Color: &props.Color{Red: 100, Green: 116, Blue: 139},
			}),
		),
	)
	m.AddRow(8,
		col.New(12).Add(
			text.New(time.Now().Format("January 2, 2006"), props.Text{
				Size:  10,
				Align: align.Center,
				Color: &props.Color{Red: 148, Green: 163, Blue: 184},
			}),
		),
	)
}

func (s *PDFService) addSlide(m core.Maroto, sl deck.RichSlide) {
	m.AddRow(8)
	m.AddRow(7,
		col.New(12).Add(
			text.New(fmt.Sprintf("Slide %d", sl.SlideNumber), props.Text{
				Size:  9,
				Style: fontstyle.Bold,
				Color: &props.Color{Red: 59, Green: 130, Blue: 246},
			}),
		),
	)

	for _, el := range sl.Elements {
		switch el.Type {
		case deck.ElementTitle:
			m.AddRow(10,
				col.New(12).Add(
					text.New(el.Content, props.Text{
						Size:  16,
						Style: fontstyle.Bold,
						Color: &props.Color{Red: 30, Green: 64, Blue: 175},
					}),
				),
			)
		case deck.ElementText:
			for _, line := range strings.Split(el.Content, "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				m.AddRow(6,
					col.New(12).Add(
						text.New(line, props.Text{
							Size:  10,
							Color: &props.Color{Red: 51, Green: 51, Blue: 51},
						}),
					),
				)
			}
		case deck.ElementBulletList:
			for _, item := range el.Items {
				m.AddRow(6,
					col.New(12).Add(
						text.New("• "+item, props.Text{
							Size: 10,
							Left: 4,
							Color: &props.Color{Red: 51, Green: 51, Blue: 51},
						}),
					),
				)
			}
		case deck.ElementImage:
			s.addImage(m, el)
		}
	}
}

func (s *PDFService) addImage(m core.Maroto, el deck.Element) {
	data, mime, ok := decodeDataURI(el.Src)
	if !ok {
		return
	}
	ext := extension.Png
	if mime == "image/jpeg" {
		ext = extension.Jpg
	}
	m.AddRow(70,
		col.New(12).Add(
			image.NewFromBytes(data, ext),
		),
	)
}
