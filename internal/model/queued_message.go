package model

import (
	"strings"
	"time"
)

type QueueStatus string

const (
	StatusPending QueueStatus = "pendente"
	StatusSending QueueStatus = "enviando"
	StatusSent    QueueStatus = "enviado"
	StatusError   QueueStatus = "erro"
)

func (s QueueStatus) String() string { return string(s) }

func (s QueueStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSending, StatusSent, StatusError:
		return true
	default:
		return false
	}
}

// ParseQueueStatus normalizes a status filter; "" and "todos" mean no filter.
// Returns ("", true) for no filter, (status, true) if valid, ("", false) otherwise.
func ParseQueueStatus(s string) (QueueStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "todos" || v == "all" {
		return "", true
	}
	st := QueueStatus(v)
	if !st.Valid() {
		return "", false
	}
	return st, true
}

// QueuedMessage is a row of fila_mensagens_clonadas.
type QueuedMessage struct {
	ID              string      `db:"id"                    json:"id"`
	OriginalText    string      `db:"mensagem_original"     json:"mensagem_original"`
	AffiliateText   string      `db:"mensagem_com_afiliado" json:"mensagem_com_afiliado"`
	ImageURL        *string     `db:"imagem_url"            json:"imagem_url,omitempty"`
	SourceGroup     string      `db:"grupo_origem"          json:"grupo_origem"`
	SourceGroupName string      `db:"grupo_origem_nome"     json:"grupo_origem_nome"`
	DueAt           time.Time   `db:"agendamento_envio"     json:"agendamento_envio"`
	Status          QueueStatus `db:"status"                json:"status"`
	Attempts        int         `db:"tentativas"            json:"tentativas"`
	LastError       *string     `db:"erro_mensagem"         json:"erro_mensagem,omitempty"`
	SentAt          *time.Time  `db:"enviado_em"            json:"enviado_em,omitempty"`
	NextRetryAt     *time.Time  `db:"proximo_retry_em"      json:"proximo_retry_em,omitempty"`
	CreatedAt       time.Time   `db:"criado_em"             json:"criado_em"`
	UpdatedAt       time.Time   `db:"atualizado_em"         json:"atualizado_em"`
}

// Text prefers the affiliate variant when it is non-empty.
func (m QueuedMessage) Text() string {
	if t := strings.TrimSpace(m.AffiliateText); t != "" {
		return t
	}
	return strings.TrimSpace(m.OriginalText)
}

// Image returns the image to forward to the gateway. Inline data: payloads are
// never forwarded.
func (m QueuedMessage) Image() string {
	if m.ImageURL == nil {
		return ""
	}
	u := strings.TrimSpace(*m.ImageURL)
	if IsInlineImage(u) {
		return ""
	}
	return u
}

// IsInlineImage reports whether ref is an inline-encoded payload (data URI).
func IsInlineImage(ref string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "data:")
}

// QueueStats summarizes the clone queue.
type QueueStats struct {
	Pending   int64      `json:"pendentes"`
	Sent      int64      `json:"enviadas"`
	Errors    int64      `json:"erros"`
	NextDueAt *time.Time `json:"proximo_envio"`
}
