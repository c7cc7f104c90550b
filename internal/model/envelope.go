package model

import "time"

// CloneEnvelope is the payload consumed from Kafka: a message cloned from a
// source group, ready to be queued for spaced delivery.
type CloneEnvelope struct {
	OriginalText    string     `json:"mensagem_original"`
	AffiliateText   string     `json:"mensagem_com_afiliado"`
	ImageURL        string     `json:"imagem_url,omitempty"`
	SourceGroup     string     `json:"grupo_origem"`
	SourceGroupName string     `json:"grupo_origem_nome"`
	DueAt           *time.Time `json:"agendamento,omitempty"` // nil => spaced automatically
}
