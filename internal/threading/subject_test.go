package threading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Question order", "Question order"},
		{"Re: Question order", "Question order"},
		{"RE: re: Fwd: Question order", "Question order"},
		{"FW: Invoice", "Invoice"},
		{"Aw: Wg: Angebot", "Angebot"},
		{"SV: VS: Tilbud", "Tilbud"},
		{"Antw: Doorst: Offerte", "Offerte"},
		{"TR: RE : Devis", "Devis"},
		{"Rv: R: Preventivo", "Preventivo"},
		{"Res: Enc: Pedido", "Pedido"},
		{"Odp: PD: Zamówienie", "Zamówienie"},
		{"Re[2]: Status", "Status"},
		{"RE (3): Status", "Status"},
		{"  Re:   spaced    out  ", "spaced out"},
		{"Re:", ""},
		{"Regarding the order", "Regarding the order"},
		{"Tracking number", "Tracking number"},
		{"Order Re: changes", "Order Re: changes"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSubject(tt.input))
		})
	}
}
