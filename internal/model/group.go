package model

import "time"

// DestinationGroup is a row of grupos_fixos_agendamento.
type DestinationGroup struct {
	ID        int64     `db:"id"            json:"id"`
	GroupID   string    `db:"grupo_id"      json:"grupo_id"`
	Name      string    `db:"grupo_nome"    json:"grupo_nome"`
	Active    bool      `db:"ativo"         json:"ativo"`
	CreatedAt time.Time `db:"criado_em"     json:"criado_em"`
	UpdatedAt time.Time `db:"atualizado_em" json:"atualizado_em"`
}
