package model

import (
	"strings"
	"time"
)

// Product is the subset of a promocoes row the dispatchers need.
// Agendamento NULL means either "not scheduled" or "already delivered".
type Product struct {
	ID                string     `db:"id"                  json:"id"`
	Title             *string    `db:"titulo"              json:"titulo,omitempty"`
	FinalMessage      *string    `db:"final_message"       json:"final_message,omitempty"`
	ProcessedImageURL *string    `db:"processed_image_url" json:"processed_image_url,omitempty"`
	ImageURL          *string    `db:"imagem_url"          json:"imagem_url,omitempty"`
	Agendamento       *time.Time `db:"agendamento"         json:"agendamento,omitempty"`
}

// Text returns the pre-rendered message, trimmed.
func (p Product) Text() string {
	if p.FinalMessage == nil {
		return ""
	}
	return strings.TrimSpace(*p.FinalMessage)
}

// Image prefers the processed image over the original one.
func (p Product) Image() string {
	if p.ProcessedImageURL != nil && strings.TrimSpace(*p.ProcessedImageURL) != "" {
		return strings.TrimSpace(*p.ProcessedImageURL)
	}
	if p.ImageURL != nil {
		return strings.TrimSpace(*p.ImageURL)
	}
	return ""
}

// ShortTitle is used in log lines only.
func (p Product) ShortTitle() string {
	if p.Title == nil {
		return ""
	}
	t := []rune(*p.Title)
	if len(t) > 50 {
		return string(t[:50]) + "..."
	}
	return string(t)
}

// Due reports whether the product is scheduled at or before now.
func (p Product) Due(now time.Time) bool {
	return p.Agendamento != nil && !now.Before(*p.Agendamento)
}
