package deck

// SlideRecord is one generated unit of content (title + bullet text) before layout.
type SlideRecord struct {
	Title       string   `json:"title"`
	Content     []string `json:"content"`
	Description string   `json:"description"`
}

// Element type tags.
const (
	ElementTitle      = "title"
	ElementText       = "text"
	ElementBulletList = "bullet_list"
	ElementImage      = "image"
)

// Layout type tags.
const (
	LayoutTitle   = "title"
	LayoutContent = "content"
)

// Position of an element on the slide, in inches from the top-left corner.
type Position struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Style holds the best-effort text styling extracted from (or applied to) an element.
type Style struct {
	FontSize   int    `json:"font_size,omitempty"`
	FontWeight string `json:"font_weight,omitempty"`
	Color      string `json:"color,omitempty"`
	Alignment  string `json:"alignment,omitempty"`
}

// Element is a tagged union keyed by Type: title/text use Content,
// bullet_list uses Items, image uses Src (data URI or URL) and Alt.
type Element struct {
	Type     string   `json:"type"`
	Content  string   `json:"content,omitempty"`
	Items    []string `json:"items,omitempty"`
	Src      string   `json:"src,omitempty"`
	Alt      string   `json:"alt,omitempty"`
	Position Position `json:"position"`
	Style    *Style   `json:"style,omitempty"`
}

// Background of a slide. Type is "color" or "gradient".
type Background struct {
	Type  string `json:"type"`
	Color string `json:"color"`
}

// RichSlide is the editable JSON representation of one rendered slide.
type RichSlide struct {
	ID          string     `json:"id"`
	SlideNumber int        `json:"slide_number"`
	LayoutType  string     `json:"layout_type"`
	Background  Background `json:"background"`
	Elements    []Element  `json:"elements"`
}

// DocumentMetadata describes the parsed document as a whole.
type DocumentMetadata struct {
	Title      string `json:"title"`
	SlideCount int    `json:"slide_count"`
	CreatedAt  string `json:"created_at"`
	Theme      string `json:"theme"`
}

// DocumentModel is the full editable model extracted from a pptx file.
type DocumentModel struct {
	Metadata DocumentMetadata `json:"metadata"`
	Slides   []RichSlide      `json:"slides"`
}

// Presentation is the service-owned record for one generated deck.
// Slides holds the generated content records; JSONData holds the rich
// editable model once the pptx has been parsed. The two forms are
// distinct types decided at ingestion, never re-inferred per consumer.
type Presentation struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Slides    []SlideRecord  `json:"slides"`
	JSONData  *DocumentModel `json:"json_data,omitempty"`
	PPTPath   string         `json:"ppt_path"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}
