package deck

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Edit errors map to validation failures at the HTTP boundary.
var (
	ErrIndexOutOfRange = errors.New("invalid slide index")
	ErrMinimumSlides   = errors.New("presentation must have at least one slide")
)

// CopySlide clones the slide at index, assigns it a fresh id, marks every
// text and bullet content field with a "(Copy)" suffix, inserts the clone
// immediately after the source and renumbers the deck 1..N.
func CopySlide(m *DocumentModel, index int) error {
	if index < 0 || index >= len(m.Slides) {
		return ErrIndexOutOfRange
	}

	clone := cloneSlide(m.Slides[index])
	clone.ID = newSlideID()
	for i := range clone.Elements {
		el := &clone.Elements[i]
		switch el.Type {
		case ElementTitle, ElementText:
			if el.Content != "" {
				el.Content = el.Content + " (Copy)"
			}
		case ElementBulletList:
			for j, item := range el.Items {
				el.Items[j] = item + " (Copy)"
			}
		}
	}

	m.Slides = append(m.Slides, RichSlide{})
	copy(m.Slides[index+2:], m.Slides[index+1:])
	m.Slides[index+1] = clone
	Renumber(m)
	return nil
}

// DeleteSlide removes the slide at index and renumbers. A deck always keeps
// at least one slide; deleting the last one is refused.
func DeleteSlide(m *DocumentModel, index int) error {
	if index < 0 || index >= len(m.Slides) {
		return ErrIndexOutOfRange
	}
	if len(m.Slides) <= 1 {
		return ErrMinimumSlides
	}
	m.Slides = append(m.Slides[:index], m.Slides[index+1:]...)
	Renumber(m)
	return nil
}

// UpdateSlide replaces the slide whose id matches slideID. Returns false
// when no slide matches; the model is left untouched in that case.
func UpdateSlide(m *DocumentModel, slideID string, slide RichSlide) bool {
	for i := range m.Slides {
		if m.Slides[i].ID == slideID {
			m.Slides[i] = slide
			Renumber(m)
			return true
		}
	}
	return false
}

// Renumber rewrites SlideNumber as 1..N in array order and refreshes the
// metadata slide count.
func Renumber(m *DocumentModel) {
	for i := range m.Slides {
		m.Slides[i].SlideNumber = i + 1
	}
	m.Metadata.SlideCount = len(m.Slides)
}

func newSlideID() string {
	return fmt.Sprintf("slide_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

func cloneSlide(s RichSlide) RichSlide {
	out := s
	out.Elements = make([]Element, len(s.Elements))
	for i, el := range s.Elements {
		c := el
		if el.Items != nil {
			c.Items = append([]string(nil), el.Items...)
		}
		if el.Style != nil {
			st := *el.Style
			c.Style = &st
		}
		out.Elements[i] = c
	}
	return out
}
