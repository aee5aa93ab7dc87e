package application

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Event es la notificación que el pipeline emite tras persistir un cambio.
// El payload ya viene serializable; los sinks no conocen el dominio.
type Event struct {
	TenantID string `json:"tenant_id"`
	Kind     string `json:"kind"`   // ticket | message | ack
	Action   string `json:"action"` // create | update
	Payload  any    `json:"payload"`
}

// Sink recibe eventos ya persistidos. Una falla de sink nunca afecta al
// pipeline: el evento se pierde para ese sink y se registra.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Fanout reparte cada evento a todos los sinks registrados.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) AddSink(s Sink) {
	f.sinks = append(f.sinks, s)
}

// Emit entrega el evento a cada sink secuencialmente. Los sinks deben ser
// rápidos o despachar internamente a una goroutine; los lentos retrasan al
// worker del gate, no al webhook.
func (f *Fanout) Emit(ctx context.Context, ev Event) {
	for _, s := range f.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			logrus.WithError(err).Warnf("[FANOUT] Sink %s failed for %s/%s", s.Name(), ev.Kind, ev.Action)
		}
	}
}
